package ingestion

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/jobs"
	"github.com/course-supporter/platform/internal/platformlog"
	"github.com/course-supporter/platform/internal/workwindow"
)

func jobColumns() []string {
	return []string{
		"id", "course_id", "node_id", "job_type", "priority", "status", "arq_job_id",
		"input_params", "result_material_id", "result_snapshot_id", "depends_on",
		"error_message", "queued_at", "started_at", "completed_at", "estimated_at",
	}
}

type fakeIngestStore struct {
	entry          *domain.MaterialEntry
	stateCalls     int
	processedCalls int
	invalidated    []string
}

func (f *fakeIngestStore) GetEntry(ctx context.Context, entryID string) (*domain.MaterialEntry, error) {
	return f.entry, nil
}

func (f *fakeIngestStore) SetEntryState(ctx context.Context, tx *sql.Tx, entry *domain.MaterialEntry) error {
	f.stateCalls++
	return nil
}

func (f *fakeIngestStore) SetProcessedContent(ctx context.Context, tx *sql.Tx, entryID, content string) error {
	f.processedCalls++
	return nil
}

func (f *fakeIngestStore) InvalidateAncestors(ctx context.Context, tx *sql.Tx, nodeID string) error {
	f.invalidated = append(f.invalidated, nodeID)
	return nil
}

func testLogger() *platformlog.Logger {
	return platformlog.New("ingestion-test", "error", "json", io.Discard)
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
			"job-1", "course-1", nil, domain.JobTypeIngest, domain.PriorityNormal, domain.JobComplete, nil,
			nil, nil, nil, nil, nil, time.Now(), nil, nil, nil,
		))

	jobRepo := jobs.NewRepository(db, nil)
	store := &fakeIngestStore{}
	orch := New(db, store, jobRepo, nil, nil, Registry{}, workwindow.Window{}, testLogger())

	err = orch.Run(context.Background(), Input{JobID: "job-1", MaterialID: "entry-1", SourceType: domain.SourceVideo})
	if err != nil {
		t.Fatalf("expected no-op success for a completed job, got %v", err)
	}
	if store.stateCalls != 0 || store.processedCalls != 0 {
		t.Fatalf("expected an already-complete job to never touch the material store, got %+v", store)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunRecoversOnFreshTransactionAfterProcessorFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	queuedAt := time.Now()
	mock.ExpectQuery(`SELECT .* FROM jobs j`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "course-1", nil, domain.JobTypeIngest, domain.PriorityNormal, domain.JobActive, nil,
			nil, nil, nil, nil, nil, queuedAt, nil, nil, nil,
		))

	// runProcessor: pending transition commits, then no registered processor fails.
	mock.ExpectBegin()
	mock.ExpectCommit()

	// recoverFailure: fresh transaction persists the job's failed status.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(domain.JobFailed, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	jobRepo := jobs.NewRepository(db, nil)
	store := &fakeIngestStore{entry: &domain.MaterialEntry{ID: "entry-1", NodeID: "node-1", State: domain.MaterialRaw}}
	// No processor registered for SourceVideo: runProcessor fails with a
	// validation error, driving recoverFailure on a separate connection.
	orch := New(db, store, jobRepo, nil, nil, Registry{}, workwindow.Window{}, testLogger())

	err = orch.Run(context.Background(), Input{JobID: "job-1", MaterialID: "entry-1", SourceType: domain.SourceVideo})
	if err == nil {
		t.Fatal("expected the missing-processor error to surface")
	}
	if store.stateCalls != 2 {
		t.Fatalf("expected the material state to be set twice (pending, then error), got %d", store.stateCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
