package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/course-supporter/platform/internal/domain"
)

func snapshotColumns() []string {
	return []string{
		"id", "course_id", "node_id", "node_fingerprint", "mode", "content", "prompt_version",
		"model", "tokens_in", "tokens_out", "cost_usd", "created_at",
	}
}

func TestFindByIdentityMissReturnsNilWithoutError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM course_structure_snapshots`).
		WithArgs("course-1", domain.NilUUID, "fp-1", domain.ModeFree).
		WillReturnRows(sqlmock.NewRows(snapshotColumns()))

	repo := NewRepository(db)
	snap, err := repo.FindByIdentity(context.Background(), "course-1", nil, "fp-1", domain.ModeFree)
	if err != nil {
		t.Fatalf("find by identity: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected cache miss, got %+v", snap)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByIdentityHitDecodesContentAndNodeID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	nodeID := "node-1"
	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM course_structure_snapshots`).
		WithArgs("course-1", nodeID, "fp-1", domain.ModeFree).
		WillReturnRows(sqlmock.NewRows(snapshotColumns()).AddRow(
			"snap-1", "course-1", nodeID, "fp-1", domain.ModeFree, []byte(`{"modules":[]}`), "v1",
			"claude-sonnet", int64(120), int64(340), 0.004, now,
		))

	repo := NewRepository(db)
	snap, err := repo.FindByIdentity(context.Background(), "course-1", &nodeID, "fp-1", domain.ModeFree)
	if err != nil {
		t.Fatalf("find by identity: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a cache hit")
	}
	if snap.NodeID == nil || *snap.NodeID != nodeID {
		t.Fatalf("expected node id %s, got %+v", nodeID, snap.NodeID)
	}
	if snap.TokensIn == nil || *snap.TokensIn != 120 {
		t.Fatalf("expected tokens_in 120, got %+v", snap.TokensIn)
	}
}

func TestCreateSerializesContentAndMintsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO course_structure_snapshots`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewRepository(db)
	snap := &domain.CourseStructureSnapshot{
		CourseID:        "course-1",
		NodeFingerprint: "fp-1",
		Mode:            domain.ModeFree,
		Content:         map[string]interface{}{"modules": []interface{}{}},
		PromptVersion:   "v1",
		Model:           "claude-sonnet",
	}
	if err := repo.Create(context.Background(), snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.ID == "" {
		t.Fatal("expected an id to be minted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
