package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Repository is the tenant-scoped, Postgres-backed job store. Tenant
// isolation here flows transitively through course_id → courses.tenant_id,
// since jobs have no tenant column of their own.
type Repository struct {
	db       *sql.DB
	tenantID *string
}

func NewRepository(db *sql.DB, tenantID *string) *Repository {
	return &Repository{db: db, tenantID: tenantID}
}

// Create inserts a new queued job row inside the caller's transaction.
func (r *Repository) Create(ctx context.Context, tx *sql.Tx, job *domain.Job) error {
	job.ID = uuid.NewString()
	params, err := json.Marshal(job.InputParams)
	if err != nil {
		return fmt.Errorf("marshal input_params: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, course_id, node_id, job_type, priority, status, input_params, depends_on, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, job.ID, job.CourseID, job.NodeID, job.JobType, job.Priority, domain.JobQueued, params, pq.Array(job.DependsOn))
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	job.Status = domain.JobQueued
	return nil
}

// SetArqJobID records the external queue handle after successful submission.
func (r *Repository) SetArqJobID(ctx context.Context, tx *sql.Tx, jobID, arqJobID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE jobs SET arq_job_id = $1 WHERE id = $2`, arqJobID, jobID)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}

// Get loads a single job, tenant-scoped via its course.
func (r *Repository) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT j.id, j.course_id, j.node_id, j.job_type, j.priority, j.status, j.arq_job_id,
		       j.input_params, j.result_material_id, j.result_snapshot_id, j.depends_on,
		       j.error_message, j.queued_at, j.started_at, j.completed_at, j.estimated_at
		FROM jobs j
		JOIN courses c ON c.id = j.course_id
		WHERE j.id = $1`
	args := []interface{}{jobID}
	if r.tenantID != nil {
		query += " AND c.tenant_id = $2"
		args = append(args, *r.tenantID)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFound("job", jobID)
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return job, nil
}

// Dequeue atomically claims the next eligible queued job for processing,
// skipping rows locked by other workers. Grounded on the SELECT ... FOR
// UPDATE SKIP LOCKED pattern used for at-least-once queue consumption.
func (r *Repository) Dequeue(ctx context.Context, jobType domain.JobType) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT j.id, j.course_id, j.node_id, j.job_type, j.priority, j.status, j.arq_job_id,
		       j.input_params, j.result_material_id, j.result_snapshot_id, j.depends_on,
		       j.error_message, j.queued_at, j.started_at, j.completed_at, j.estimated_at
		FROM jobs j
		WHERE j.status = $1 AND j.job_type = $2
		ORDER BY j.priority DESC, j.queued_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, domain.JobQueued, jobType)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}

	if err := Transition(job, domain.JobActive, nowUTC()); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $1, started_at = $2 WHERE id = $3`,
		job.Status, job.StartedAt, job.ID); err != nil {
		return nil, svcerrors.DatabaseError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return job, nil
}

// ActiveForCourse returns queued+active jobs for a course, used by the
// conflict detector.
func (r *Repository) ActiveForCourse(ctx context.Context, courseID string) ([]*domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT j.id, j.course_id, j.node_id, j.job_type, j.priority, j.status, j.arq_job_id,
		       j.input_params, j.result_material_id, j.result_snapshot_id, j.depends_on,
		       j.error_message, j.queued_at, j.started_at, j.completed_at, j.estimated_at
		FROM jobs j
		WHERE j.course_id = $1 AND j.status IN ($2, $3)
	`, courseID, domain.JobQueued, domain.JobActive)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, svcerrors.DatabaseError(err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateStatus persists a job's in-memory status/result/error fields after
// a Transition call.
func (r *Repository) UpdateStatus(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}, job *domain.Job) error {
	_, err := execer.ExecContext(ctx, `
		UPDATE jobs SET status = $1, result_material_id = $2, result_snapshot_id = $3,
		       error_message = $4, started_at = $5, completed_at = $6
		WHERE id = $7
	`, job.Status, job.ResultMaterialID, job.ResultSnapshotID, job.ErrorMessage,
		job.StartedAt, job.CompletedAt, job.ID)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}

// Retry is the administrator-initiated operation moving a failed job back
// to queued; the state machine itself does not decide when this runs.
func (r *Repository) Retry(ctx context.Context, jobID string) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := Transition(job, domain.JobQueued, nowUTC()); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE jobs SET status = $1, error_message = NULL, completed_at = NULL WHERE id = $2`,
		job.Status, job.ID)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var nodeID sql.NullString
	var arqJobID sql.NullString
	var inputParams []byte
	var resultMaterialID, resultSnapshotID sql.NullString
	var dependsOn pq.StringArray
	var errorMessage sql.NullString
	var startedAt, completedAt, estimatedAt sql.NullTime

	err := row.Scan(&job.ID, &job.CourseID, &nodeID, &job.JobType, &job.Priority, &job.Status,
		&arqJobID, &inputParams, &resultMaterialID, &resultSnapshotID, &dependsOn,
		&errorMessage, &job.QueuedAt, &startedAt, &completedAt, &estimatedAt)
	if err != nil {
		return nil, err
	}

	if nodeID.Valid {
		job.NodeID = &nodeID.String
	}
	if arqJobID.Valid {
		job.ArqJobID = &arqJobID.String
	}
	if resultMaterialID.Valid {
		job.ResultMaterialID = &resultMaterialID.String
	}
	if resultSnapshotID.Valid {
		job.ResultSnapshotID = &resultSnapshotID.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if estimatedAt.Valid {
		job.EstimatedAt = &estimatedAt.Time
	}
	job.DependsOn = []string(dependsOn)

	if len(inputParams) > 0 {
		if err := json.Unmarshal(inputParams, &job.InputParams); err != nil {
			return nil, fmt.Errorf("unmarshal input_params: %w", err)
		}
	}

	return &job, nil
}
