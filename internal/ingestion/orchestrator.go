// Package ingestion drives a single material entry from raw upload to
// processed, searchable content: work-window gating, state transitions,
// source-type dispatch, and the two-session failure recovery path.
package ingestion

import (
	"context"
	"database/sql"
	"time"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/jobs"
	"github.com/course-supporter/platform/internal/llm"
	"github.com/course-supporter/platform/internal/objectstore"
	"github.com/course-supporter/platform/internal/platformlog"
	"github.com/course-supporter/platform/internal/svcerrors"
	"github.com/course-supporter/platform/internal/workwindow"
)

// Processor extracts processed_content from a single entry's stored bytes.
// Implementations are registered per domain.SourceType; the orchestrator
// never type-switches on source type itself.
type Processor interface {
	Process(ctx context.Context, router *llm.Router, entry *domain.MaterialEntry, raw []byte) (content string, err error)
}

// Registry maps a SourceType to its Processor, mirroring the llm.Provider
// lookup-by-tag pattern rather than a type switch.
type Registry map[domain.SourceType]Processor

// Store is the persistence surface the orchestrator needs beyond the job
// and material state machines themselves.
type Store interface {
	GetEntry(ctx context.Context, entryID string) (*domain.MaterialEntry, error)
	SetEntryState(ctx context.Context, tx *sql.Tx, entry *domain.MaterialEntry) error
	SetProcessedContent(ctx context.Context, tx *sql.Tx, entryID, content string) error
	InvalidateAncestors(ctx context.Context, tx *sql.Tx, nodeID string) error
}

// Orchestrator runs the ingestion pipeline for one job at a time.
type Orchestrator struct {
	db         *sql.DB
	store      Store
	jobs       *jobs.Repository
	objects    objectstore.ObjectStore
	router     *llm.Router
	processors Registry
	window     workwindow.Window
	log        *platformlog.Logger
}

func New(db *sql.DB, store Store, jobRepo *jobs.Repository, objects objectstore.ObjectStore, router *llm.Router, processors Registry, window workwindow.Window, log *platformlog.Logger) *Orchestrator {
	return &Orchestrator{db: db, store: store, jobs: jobRepo, objects: objects, router: router, processors: processors, window: window, log: log}
}

// Input is the payload carried on an ingest job's queue envelope.
type Input struct {
	JobID      string
	MaterialID string
	SourceType domain.SourceType
	StorageKey string
	Priority   domain.JobPriority
}

// Run executes the happy path: gate, claim, process, persist, complete.
// A processor or commit failure is handed to recoverFailure on a fresh
// connection rather than the transaction already rolled back here, so a
// broken transaction can never block the failure record from being
// written. Errors from the work-window gate or from loading the job or
// entry are returned without recovery.
func (o *Orchestrator) Run(ctx context.Context, in Input) error {
	if err := jobs.CheckWorkWindow(in.Priority, o.window, time.Now()); err != nil {
		return err // *jobs.Defer: caller re-enqueues via the external queue's defer mechanism
	}

	job, err := o.jobs.Get(ctx, in.JobID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobComplete {
		// At-least-once delivery: a redelivered completed job is a no-op.
		return nil
	}
	entry, err := o.store.GetEntry(ctx, in.MaterialID)
	if err != nil {
		return err
	}

	content, procErr := o.runProcessor(ctx, entry, in)
	if procErr != nil {
		o.recoverFailure(context.Background(), job, entry, procErr)
		return procErr
	}

	if err := o.commitSuccess(ctx, job, entry, content); err != nil {
		o.recoverFailure(context.Background(), job, entry, err)
		return err
	}
	return nil
}

func (o *Orchestrator) runProcessor(ctx context.Context, entry *domain.MaterialEntry, in Input) (string, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return "", svcerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := jobs.TransitionMaterial(entry, domain.MaterialPending, now); err != nil {
		return "", err
	}
	if err := o.store.SetEntryState(ctx, tx, entry); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", svcerrors.DatabaseError(err)
	}

	proc, ok := o.processors[in.SourceType]
	if !ok {
		return "", svcerrors.ValidationFailure("no processor registered for source type %q", in.SourceType)
	}

	raw, err := o.objects.Get(ctx, in.StorageKey)
	if err != nil {
		return "", svcerrors.Internal(err)
	}

	content, err := proc.Process(ctx, o.router, entry, raw)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (o *Orchestrator) commitSuccess(ctx context.Context, job *domain.Job, entry *domain.MaterialEntry, content string) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if err := o.store.SetProcessedContent(ctx, tx, entry.ID, content); err != nil {
		return err
	}
	if err := o.store.InvalidateAncestors(ctx, tx, entry.NodeID); err != nil {
		return err
	}

	entry.ProcessedContent = &content
	if err := jobs.TransitionMaterial(entry, domain.MaterialReady, now); err != nil {
		return err
	}
	if err := o.store.SetEntryState(ctx, tx, entry); err != nil {
		return err
	}

	job.ResultMaterialID = &entry.ID
	if err := jobs.Transition(job, domain.JobComplete, now); err != nil {
		return err
	}
	if err := o.jobs.UpdateStatus(ctx, tx, job); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}

// recoverFailure runs on a deliberately separate context and connection so a
// broken or already-rolled-back transaction from the happy path can never
// prevent the failure from being recorded. It never returns an error: if
// persisting the failure itself fails, it logs and gives up, since there is
// no further recovery tier beneath this one.
func (o *Orchestrator) recoverFailure(ctx context.Context, job *domain.Job, entry *domain.MaterialEntry, cause error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: could not open recovery transaction")
		return
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	msg := cause.Error()

	entry.ErrorMessage = &msg
	if err := jobs.TransitionMaterial(entry, domain.MaterialError, now); err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: material transition rejected")
	}
	if err := o.store.SetEntryState(ctx, tx, entry); err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: persist material failure state")
	}

	job.ErrorMessage = &msg
	if err := jobs.Transition(job, domain.JobFailed, now); err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: job transition rejected")
	}
	if err := o.jobs.UpdateStatus(ctx, tx, job); err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: persist job failure state")
	}

	if err := tx.Commit(); err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: commit failed")
	}
}
