package generation

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/jobs"
	"github.com/course-supporter/platform/internal/platformlog"
)

func jobColumns() []string {
	return []string{
		"id", "course_id", "node_id", "job_type", "priority", "status", "arq_job_id",
		"input_params", "result_material_id", "result_snapshot_id", "depends_on",
		"error_message", "queued_at", "started_at", "completed_at", "estimated_at",
	}
}

type fakeGenerationStore struct {
	nodes    map[string]*domain.MaterialNode
	children map[string][]*domain.MaterialNode
	entries  map[string][]*domain.MaterialEntry
}

func (f *fakeGenerationStore) ChildNodes(ctx context.Context, nodeID string) ([]*domain.MaterialNode, error) {
	return f.children[nodeID], nil
}

func (f *fakeGenerationStore) Entries(ctx context.Context, nodeID string) ([]*domain.MaterialEntry, error) {
	return f.entries[nodeID], nil
}

func (f *fakeGenerationStore) Node(ctx context.Context, nodeID string) (*domain.MaterialNode, error) {
	return f.nodes[nodeID], nil
}

func (f *fakeGenerationStore) ClearFingerprint(ctx context.Context, nodeID string) error {
	return nil
}

func (f *fakeGenerationStore) SetEntryFingerprint(ctx context.Context, entryID, fingerprint string) error {
	return nil
}

func (f *fakeGenerationStore) SetNodeFingerprint(ctx context.Context, nodeID, fingerprint string) error {
	return nil
}

func testLogger() *platformlog.Logger {
	return platformlog.New("generation-test", "error", "json", io.Discard)
}

func TestRunIsNoOpForAlreadyCompletedJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM jobs j`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "course-1", nil, domain.JobTypeGenerateStructure, domain.PriorityNormal, domain.JobComplete, nil,
			nil, nil, nil, nil, nil, time.Now(), nil, nil, nil,
		))

	jobRepo := jobs.NewRepository(db, nil)
	store := &fakeGenerationStore{}
	orch := New(db, store, jobRepo, nil, nil, "default", testLogger())

	err = orch.Run(context.Background(), Input{JobID: "job-1", CourseID: "course-1"}, nil)
	if err != nil {
		t.Fatalf("expected no-op success for a completed job, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunRecoversOnFreshTransactionWhenMaterialsAreNotReady(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	queuedAt := time.Now()
	mock.ExpectQuery(`SELECT .* FROM jobs j`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "course-1", nil, domain.JobTypeGenerateStructure, domain.PriorityNormal, domain.JobActive, nil,
			nil, nil, nil, nil, nil, queuedAt, nil, nil, nil,
		))

	// recoverFailure opens its own transaction to persist the failed status,
	// independent of whatever path produced the error.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(domain.JobFailed, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := &fakeGenerationStore{
		nodes: map[string]*domain.MaterialNode{
			"course-1": {ID: "course-1"},
		},
		entries: map[string][]*domain.MaterialEntry{
			"course-1": {
				{ID: "e1", NodeID: "course-1", State: domain.MaterialRaw},
			},
		},
	}
	jobRepo := jobs.NewRepository(db, nil)
	orch := New(db, store, jobRepo, nil, nil, "default", testLogger())

	err = orch.Run(context.Background(), Input{JobID: "job-1", CourseID: "course-1"}, nil)
	if err == nil {
		t.Fatal("expected a not-ready error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
