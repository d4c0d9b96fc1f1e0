package jobs

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/queue"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Enqueuer wires the job repository to the external queue so job creation
// and queue submission happen as a single logical unit.
type Enqueuer struct {
	db    *sql.DB
	repo  *Repository
	queue queue.Queue
}

func NewEnqueuer(db *sql.DB, repo *Repository, q queue.Queue) *Enqueuer {
	return &Enqueuer{db: db, repo: repo, queue: q}
}

// EnqueueIngestion creates a queued Job row and submits it to the external
// queue. The row and its arq_job_id commit together at the end of one
// transaction, so a failure after queue submission leaves a queue message
// with no committed job row.
func (e *Enqueuer) EnqueueIngestion(ctx context.Context, courseID string, nodeID *string, priority domain.JobPriority, materialID string) (*domain.Job, error) {
	return e.enqueue(ctx, queue.FuncIngestMaterial, &domain.Job{
		CourseID:    courseID,
		NodeID:      nodeID,
		JobType:     domain.JobTypeIngest,
		Priority:    priority,
		InputParams: map[string]interface{}{"material_id": materialID},
	})
}

// EnqueueGeneration creates a queued Job row for a structure-generation
// request and submits it to the external queue.
func (e *Enqueuer) EnqueueGeneration(ctx context.Context, courseID string, nodeID *string, priority domain.JobPriority, mode domain.GenerationMode, dependsOn []string) (*domain.Job, error) {
	job := &domain.Job{
		CourseID:    courseID,
		NodeID:      nodeID,
		JobType:     domain.JobTypeGenerateStructure,
		Priority:    priority,
		DependsOn:   dependsOn,
		InputParams: map[string]interface{}{"mode": string(mode)},
	}
	return e.enqueue(ctx, queue.FuncGenerateStructure, job)
}

func (e *Enqueuer) enqueue(ctx context.Context, funcName string, job *domain.Job) (*domain.Job, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	if err := e.repo.Create(ctx, tx, job); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(job.InputParams)
	if err != nil {
		return nil, svcerrors.Internal(err)
	}

	arqJobID, err := e.queue.Submit(ctx, funcName, job.ID, payload)
	if err != nil {
		return nil, svcerrors.Internal(err)
	}

	if err := e.repo.SetArqJobID(ctx, tx, job.ID, arqJobID); err != nil {
		return nil, err
	}
	job.ArqJobID = &arqJobID

	if err := tx.Commit(); err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return job, nil
}
