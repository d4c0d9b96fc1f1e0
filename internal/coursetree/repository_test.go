package coursetree

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/course-supporter/platform/internal/domain"
)

func entryColumns() []string {
	return []string{
		"id", "node_id", "source_type", "source_url", "filename", "mime_type", "storage_key", "state",
		"processed_content", "content_fingerprint", "error_message", "processed_at", "created_at",
	}
}

func TestGetCourseScopesToTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	now := time.Now()
	mock.ExpectQuery(`SELECT id, tenant_id, title, description, created_at, updated_at FROM courses WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("course-1", tenant).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title", "description", "created_at", "updated_at"}).
			AddRow("course-1", tenant, "Intro to Go", "", now, now))

	repo := NewRepository(db, &tenant)
	course, err := repo.GetCourse(context.Background(), "course-1")
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if course.TenantID != tenant {
		t.Fatalf("expected tenant %s, got %s", tenant, course.TenantID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCourseNotFoundForOtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	mock.ExpectQuery(`SELECT id, tenant_id, title, description, created_at, updated_at FROM courses`).
		WithArgs("course-1", tenant).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title", "description", "created_at", "updated_at"}))

	repo := NewRepository(db, &tenant)
	_, err = repo.GetCourse(context.Background(), "course-1")
	if err == nil {
		t.Fatal("expected not found error for a course owned by another tenant")
	}
}

func TestInvalidateAncestorsWalksToRoot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE material_nodes SET node_fingerprint = NULL WHERE id = \$1`).
		WithArgs("leaf").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT parent_id FROM material_nodes WHERE id = \$1`).
		WithArgs("leaf").WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow("root"))
	mock.ExpectExec(`UPDATE material_nodes SET node_fingerprint = NULL WHERE id = \$1`).
		WithArgs("root").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT parent_id FROM material_nodes WHERE id = \$1`).
		WithArgs("root").WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow(nil))
	mock.ExpectCommit()

	repo := NewRepository(db, nil)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.InvalidateAncestors(context.Background(), tx, "leaf"); err != nil {
		t.Fatalf("invalidate ancestors: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetEntryMapsNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT me\.id, me\.node_id, me\.source_type.*FROM material_entries me\s*JOIN material_nodes mn ON mn\.id = me\.node_id\s*JOIN courses c ON c\.id = mn\.course_id\s*WHERE me\.id = \$1`).
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows(entryColumns()).AddRow(
			"entry-1", "node-1", domain.SourceVideo, nil, "lecture.mp4", "video/mp4", "course-1/node-1/lecture.mp4",
			domain.MaterialRaw, nil, nil, nil, nil, now,
		))

	repo := NewRepository(db, nil)
	entry, err := repo.GetEntry(context.Background(), "entry-1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Filename == nil || *entry.Filename != "lecture.mp4" {
		t.Fatalf("expected filename to be populated, got %+v", entry.Filename)
	}
	if entry.ProcessedContent != nil {
		t.Fatalf("expected nil processed_content before ingestion, got %v", *entry.ProcessedContent)
	}
	if entry.State != domain.MaterialRaw {
		t.Fatalf("expected RAW state, got %s", entry.State)
	}
}

func TestGetEntryScopesToTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	mock.ExpectQuery(`FROM material_entries me\s*JOIN material_nodes mn ON mn\.id = me\.node_id\s*JOIN courses c ON c\.id = mn\.course_id\s*WHERE me\.id = \$1 AND c\.tenant_id = \$2`).
		WithArgs("entry-1", tenant).
		WillReturnRows(sqlmock.NewRows(entryColumns()))

	repo := NewRepository(db, &tenant)
	_, err = repo.GetEntry(context.Background(), "entry-1")
	if err == nil {
		t.Fatal("expected not found for an entry owned by another tenant")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNodeScopesToTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	mock.ExpectQuery(`FROM material_nodes mn\s*JOIN courses c ON c\.id = mn\.course_id\s*WHERE mn\.id = \$1 AND c\.tenant_id = \$2`).
		WithArgs("node-1", tenant).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "parent_id", "title", "description", "order", "node_fingerprint"}))

	repo := NewRepository(db, &tenant)
	node, err := repo.Node(context.Background(), "node-1")
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil for a node owned by another tenant, got %+v", node)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetEntryFingerprintDeniesOtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	mock.ExpectExec(`UPDATE material_entries SET content_fingerprint = \$1 WHERE id = \$2 AND node_id IN \(\s*SELECT mn\.id FROM material_nodes mn JOIN courses c ON c\.id = mn\.course_id WHERE c\.tenant_id = \$3\s*\)`).
		WithArgs("fp-1", "entry-1", tenant).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db, &tenant)
	err = repo.SetEntryFingerprint(context.Background(), "entry-1", "fp-1")
	if err == nil {
		t.Fatal("expected not found when the entry belongs to another tenant")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvalidateAncestorsDeniesOtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tenant := "tenant-1"
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(\s*SELECT 1 FROM material_nodes mn\s*JOIN courses c ON c\.id = mn\.course_id\s*WHERE mn\.id = \$1 AND c\.tenant_id = \$2\s*\)`).
		WithArgs("leaf", tenant).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	repo := NewRepository(db, &tenant)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := repo.InvalidateAncestors(context.Background(), tx, "leaf"); err == nil {
		t.Fatal("expected not found for a node owned by another tenant")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
