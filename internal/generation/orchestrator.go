// Package generation drives course structure synthesis: readiness,
// conflict detection, fingerprinting, snapshot cache lookup, model routing,
// and job persistence for a single generation request.
package generation

import (
	"context"
	"database/sql"
	"time"

	"github.com/course-supporter/platform/internal/conflict"
	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/fingerprint"
	"github.com/course-supporter/platform/internal/jobs"
	"github.com/course-supporter/platform/internal/llm"
	"github.com/course-supporter/platform/internal/platformlog"
	"github.com/course-supporter/platform/internal/snapshot"
	"github.com/course-supporter/platform/internal/svcerrors"
	"github.com/course-supporter/platform/internal/tree"
)

// Store is the material-tree access the orchestrator needs, satisfied by
// internal/coursetree.Repository.
type Store interface {
	tree.Store
	fingerprint.Store
	conflict.NodeLookup
}

// Orchestrator synthesizes one course structure snapshot per invocation.
type Orchestrator struct {
	db       *sql.DB
	store    Store
	jobs     *jobs.Repository
	snaps    *snapshot.Repository
	router   *llm.Router
	fp       *fingerprint.Service
	strategy string
	log      *platformlog.Logger
}

func New(db *sql.DB, store Store, jobRepo *jobs.Repository, snaps *snapshot.Repository, router *llm.Router, strategy string, log *platformlog.Logger) *Orchestrator {
	return &Orchestrator{db: db, store: store, jobs: jobRepo, snaps: snaps, router: router, fp: fingerprint.New(store), strategy: strategy, log: log}
}

// Input is the payload carried on a generate_structure job's queue envelope.
type Input struct {
	JobID    string
	CourseID string
	NodeID   *string // nil means whole-course
	Mode     domain.GenerationMode
}

// Run executes readiness check → conflict check → fingerprint → cache
// lookup → (cache hit: reference) or (cache miss: router call → persist) →
// job completion. Failures follow the same separate-session recovery used
// by the ingestion orchestrator.
func (o *Orchestrator) Run(ctx context.Context, in Input, active []conflict.ActiveJob) error {
	job, err := o.jobs.Get(ctx, in.JobID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobComplete {
		return nil
	}

	scopeID := in.CourseID
	if in.NodeID != nil {
		scopeID = *in.NodeID
	}

	ready, stale, err := tree.CheckSubtree(ctx, o.store, scopeID)
	if err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	}
	if !ready {
		err := svcerrors.NoReadyMaterials().WithDetails(map[string]interface{}{"stale": stale})
		o.recoverFailure(context.Background(), job, err)
		return err
	}

	if result, err := conflict.Detect(ctx, o.store, in.NodeID, active); err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	} else if result != nil {
		err := svcerrors.GenerationConflict(result.ConflictingJobID, result.ConflictingJobNode, result.Reason)
		o.recoverFailure(context.Background(), job, err)
		return err
	}

	node, err := o.store.Node(ctx, scopeID)
	if err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	}
	if node == nil {
		err := svcerrors.NodeNotFound(scopeID)
		o.recoverFailure(context.Background(), job, err)
		return err
	}

	nodeFP, err := o.fp.EnsureNodeFP(ctx, node)
	if err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	}

	existing, err := o.snaps.FindByIdentity(ctx, in.CourseID, in.NodeID, nodeFP, in.Mode)
	if err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	}

	var snapshotID string
	if existing != nil {
		snapshotID = existing.ID
	} else {
		snap, err := o.generate(ctx, in, nodeFP)
		if err != nil {
			o.recoverFailure(context.Background(), job, err)
			return err
		}
		snapshotID = snap.ID
	}

	if err := o.commitSuccess(ctx, job, snapshotID); err != nil {
		o.recoverFailure(context.Background(), job, err)
		return err
	}
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, in Input, nodeFP string) (*domain.CourseStructureSnapshot, error) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"modules": map[string]interface{}{"type": "array"},
		},
		"required": []string{"modules"},
	}
	req := llm.Request{
		Prompt:       "Produce a nested course program (modules -> lessons -> concepts/exercises) from the ready course materials.",
		SystemPrompt: "You structure course material into a pedagogically ordered program.",
	}

	content, resp, err := o.router.CompleteStructured(ctx, "course_structuring", o.strategy, req, "course_program", schema)
	if err != nil {
		return nil, err
	}

	snap := &domain.CourseStructureSnapshot{
		CourseID:        in.CourseID,
		NodeID:          in.NodeID,
		NodeFingerprint: nodeFP,
		Mode:            in.Mode,
		Content:         content,
		PromptVersion:   "v1",
		Model:           resp.ModelID,
		TokensIn:        resp.TokensIn,
		TokensOut:       resp.TokensOut,
		CostUSD:         resp.CostUSD,
	}
	if err := o.snaps.Create(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (o *Orchestrator) commitSuccess(ctx context.Context, job *domain.Job, snapshotID string) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	job.ResultSnapshotID = &snapshotID
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

func (o *Orchestrator) recoverFailure(ctx context.Context, job *domain.Job, cause error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		o.log.WithContext(ctx).WithError(err).Error("recoverFailure: could not open recovery transaction")
		return
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	msg := cause.Error()
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
