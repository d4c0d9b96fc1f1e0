// Package snapshot implements the content-addressed lookup and storage of
// generation artifacts.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func nodeIDOrNil(nodeID *string) string {
	if nodeID == nil {
		return domain.NilUUID
	}
	return *nodeID
}

// FindByIdentity looks up a snapshot by (course, node-or-NIL, fingerprint,
// mode); called by the generation orchestrator before the model router.
func (r *Repository) FindByIdentity(ctx context.Context, courseID string, nodeID *string, fingerprint string, mode domain.GenerationMode) (*domain.CourseStructureSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, node_id, node_fingerprint, mode, content, prompt_version,
		       model, tokens_in, tokens_out, cost_usd, created_at
		FROM course_structure_snapshots
		WHERE course_id = $1 AND node_id = $2 AND node_fingerprint = $3 AND mode = $4
	`, courseID, nodeIDOrNil(nodeID), fingerprint, mode)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return snap, nil
}

// Create persists a new, immutable snapshot. Callers must already have
// confirmed a cache miss via FindByIdentity within the same request.
func (r *Repository) Create(ctx context.Context, snap *domain.CourseStructureSnapshot) error {
	snap.ID = uuid.NewString()
	content, err := json.Marshal(snap.Content)
	if err != nil {
		return svcerrors.Internal(err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO course_structure_snapshots
			(id, course_id, node_id, node_fingerprint, mode, content, prompt_version, model, tokens_in, tokens_out, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, snap.ID, snap.CourseID, nodeIDOrNil(snap.NodeID), snap.NodeFingerprint, snap.Mode, content,
		snap.PromptVersion, snap.Model, snap.TokensIn, snap.TokensOut, snap.CostUSD)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return nil
}

func scanSnapshot(row *sql.Row) (*domain.CourseStructureSnapshot, error) {
	var snap domain.CourseStructureSnapshot
	var nodeID string
	var content []byte
	var tokensIn, tokensOut sql.NullInt64
	var costUSD sql.NullFloat64

	err := row.Scan(&snap.ID, &snap.CourseID, &nodeID, &snap.NodeFingerprint, &snap.Mode, &content,
		&snap.PromptVersion, &snap.Model, &tokensIn, &tokensOut, &costUSD, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	if nodeID != domain.NilUUID {
		snap.NodeID = &nodeID
	}
	if tokensIn.Valid {
		v := int(tokensIn.Int64)
		snap.TokensIn = &v
	}
	if tokensOut.Valid {
		v := int(tokensOut.Int64)
		snap.TokensOut = &v
	}
	if costUSD.Valid {
		snap.CostUSD = &costUSD.Float64
	}
	if err := json.Unmarshal(content, &snap.Content); err != nil {
		return nil, err
	}
	return &snap, nil
}
