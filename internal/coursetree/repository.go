// Package coursetree is the tenant-scoped repository for courses and their
// material tree: nodes and entries. It implements the Store interfaces
// consumed by the fingerprint and tree packages.
package coursetree

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Repository is constructed with an optional tenantID; every read query
// carries the tenant filter, every create auto-populates it, and every
// update/delete is scoped to the tenant's own courses so an ID alone is
// never enough to reach another tenant's data. A nil tenantID bypasses
// isolation by design and is reserved for administrative/system paths.
type Repository struct {
	db       *sql.DB
	tenantID *string
}

func NewRepository(db *sql.DB, tenantID *string) *Repository {
	return &Repository{db: db, tenantID: tenantID}
}

// CreateCourse inserts a new course owned by the repository's tenant.
func (r *Repository) CreateCourse(ctx context.Context, title, description string) (*domain.Course, error) {
	if r.tenantID == nil {
		return nil, svcerrors.Internal(nil)
	}
	course := &domain.Course{
		ID:          uuid.NewString(),
		TenantID:    *r.tenantID,
		Title:       title,
		Description: description,
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, tenant_id, title, description) VALUES ($1, $2, $3, $4)
	`, course.ID, course.TenantID, course.Title, course.Description)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return course, nil
}

// GetCourse returns NotFound both for a missing course and for one
// belonging to another tenant — the two are indistinguishable externally.
func (r *Repository) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	query := `SELECT id, tenant_id, title, description, created_at, updated_at FROM courses WHERE id = $1`
	args := []interface{}{courseID}
	if r.tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *r.tenantID)
	}

	var c domain.Course
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.TenantID, &c.Title, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFound("course", courseID)
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return &c, nil
}

// Node returns a single material node, or nil if absent, scoped through
// its owning course's tenant. It satisfies fingerprint.Store and tree.Store.
func (r *Repository) Node(ctx context.Context, nodeID string) (*domain.MaterialNode, error) {
	query := `
		SELECT mn.id, mn.course_id, mn.parent_id, mn.title, mn.description, mn."order", mn.node_fingerprint
		FROM material_nodes mn
		JOIN courses c ON c.id = mn.course_id
		WHERE mn.id = $1`
	args := []interface{}{nodeID}
	if r.tenantID != nil {
		query += " AND c.tenant_id = $2"
		args = append(args, *r.tenantID)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return node, nil
}

// ChildNodes returns the direct children of nodeID, scoped through the
// owning course's tenant.
func (r *Repository) ChildNodes(ctx context.Context, nodeID string) ([]*domain.MaterialNode, error) {
	query := `
		SELECT mn.id, mn.course_id, mn.parent_id, mn.title, mn.description, mn."order", mn.node_fingerprint
		FROM material_nodes mn
		JOIN courses c ON c.id = mn.course_id
		WHERE mn.parent_id = $1`
	args := []interface{}{nodeID}
	if r.tenantID != nil {
		query += " AND c.tenant_id = $2"
		args = append(args, *r.tenantID)
	}
	query += ` ORDER BY mn."order"`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []*domain.MaterialNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, svcerrors.DatabaseError(err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Entries returns every MaterialEntry attached to nodeID, scoped through
// the node's owning course's tenant.
func (r *Repository) Entries(ctx context.Context, nodeID string) ([]*domain.MaterialEntry, error) {
	query := `
		SELECT me.id, me.node_id, me.source_type, me.source_url, me.filename, me.mime_type, me.storage_key, me.state,
		       me.processed_content, me.content_fingerprint, me.error_message, me.processed_at, me.created_at
		FROM material_entries me
		JOIN material_nodes mn ON mn.id = me.node_id
		JOIN courses c ON c.id = mn.course_id
		WHERE me.node_id = $1`
	args := []interface{}{nodeID}
	if r.tenantID != nil {
		query += " AND c.tenant_id = $2"
		args = append(args, *r.tenantID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []*domain.MaterialEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, svcerrors.DatabaseError(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEntryFingerprint persists a newly computed content fingerprint.
// The update is scoped to the repository's tenant via a subquery, since
// material_entries carries no tenant column of its own.
func (r *Repository) SetEntryFingerprint(ctx context.Context, entryID, fingerprint string) error {
	query := `UPDATE material_entries SET content_fingerprint = $1 WHERE id = $2`
	args := []interface{}{fingerprint, entryID}
	query, args = r.scopeEntryMutation(query, args)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return r.checkOwned(res, "material_entry", entryID)
}

// SetNodeFingerprint persists a newly computed subtree fingerprint,
// scoped to the repository's tenant.
func (r *Repository) SetNodeFingerprint(ctx context.Context, nodeID, fingerprint string) error {
	query := `UPDATE material_nodes SET node_fingerprint = $1 WHERE id = $2`
	args := []interface{}{fingerprint, nodeID}
	query, args = r.scopeNodeMutation(query, args)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return r.checkOwned(res, "material_node", nodeID)
}

// ClearFingerprint invalidates a single node's cached fingerprint, scoped
// to the repository's tenant.
func (r *Repository) ClearFingerprint(ctx context.Context, nodeID string) error {
	query := `UPDATE material_nodes SET node_fingerprint = NULL WHERE id = $1`
	args := []interface{}{nodeID}
	query, args = r.scopeNodeMutation(query, args)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return r.checkOwned(res, "material_node", nodeID)
}

// SetEntryProcessedContent records ingestion output, clearing the stale
// content fingerprint in the same transaction, scoped to the repository's
// tenant.
func (r *Repository) SetEntryProcessedContent(ctx context.Context, tx *sql.Tx, entryID, content string) error {
	query := `UPDATE material_entries SET processed_content = $1, content_fingerprint = NULL WHERE id = $2`
	args := []interface{}{content, entryID}
	query, args = r.scopeEntryMutation(query, args)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return r.checkOwned(res, "material_entry", entryID)
}

// GetEntry loads a single material entry by ID, scoped through its owning
// course's tenant. It satisfies ingestion.Store.
func (r *Repository) GetEntry(ctx context.Context, entryID string) (*domain.MaterialEntry, error) {
	query := `
		SELECT me.id, me.node_id, me.source_type, me.source_url, me.filename, me.mime_type, me.storage_key, me.state,
		       me.processed_content, me.content_fingerprint, me.error_message, me.processed_at, me.created_at
		FROM material_entries me
		JOIN material_nodes mn ON mn.id = me.node_id
		JOIN courses c ON c.id = mn.course_id
		WHERE me.id = $1`
	args := []interface{}{entryID}
	if r.tenantID != nil {
		query += " AND c.tenant_id = $2"
		args = append(args, *r.tenantID)
	}

	row := r.db.QueryRowContext(ctx, query, args...)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, svcerrors.NotFound("material_entry", entryID)
	}
	if err != nil {
		return nil, svcerrors.DatabaseError(err)
	}
	return entry, nil
}

// SetEntryState persists entry's state/error_message/processed_at inside
// tx, after a jobs.TransitionMaterial call has already validated the
// move, scoped to the repository's tenant.
func (r *Repository) SetEntryState(ctx context.Context, tx *sql.Tx, entry *domain.MaterialEntry) error {
	query := `UPDATE material_entries SET state = $1, error_message = $2, processed_at = $3 WHERE id = $4`
	args := []interface{}{entry.State, entry.ErrorMessage, entry.ProcessedAt, entry.ID}
	query, args = r.scopeEntryMutation(query, args)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	return r.checkOwned(res, "material_entry", entry.ID)
}

// SetProcessedContent is an alias of SetEntryProcessedContent named to
// match ingestion.Store's method set.
func (r *Repository) SetProcessedContent(ctx context.Context, tx *sql.Tx, entryID, content string) error {
	return r.SetEntryProcessedContent(ctx, tx, entryID, content)
}

// InvalidateAncestors clears the cached fingerprint on nodeID and every
// ancestor up to the root inside tx, mirroring tree.InvalidateAncestors but
// transactional so the mutation and the invalidation commit atomically.
// Ownership is verified once, against the starting node; every ancestor
// above it necessarily belongs to the same course by foreign key, so the
// walk itself does not repeat the check.
func (r *Repository) InvalidateAncestors(ctx context.Context, tx *sql.Tx, nodeID string) error {
	if r.tenantID != nil {
		var owned bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM material_nodes mn
				JOIN courses c ON c.id = mn.course_id
				WHERE mn.id = $1 AND c.tenant_id = $2
			)
		`, nodeID, *r.tenantID).Scan(&owned)
		if err != nil {
			return svcerrors.DatabaseError(err)
		}
		if !owned {
			return svcerrors.NotFound("material_node", nodeID)
		}
	}

	current := nodeID
	for current != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE material_nodes SET node_fingerprint = NULL WHERE id = $1`, current); err != nil {
			return svcerrors.DatabaseError(err)
		}
		var parentID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT parent_id FROM material_nodes WHERE id = $1`, current).Scan(&parentID)
		if err == sql.ErrNoRows || !parentID.Valid {
			break
		}
		if err != nil {
			return svcerrors.DatabaseError(err)
		}
		current = parentID.String
	}
	return nil
}

// scopeNodeMutation appends a tenant-ownership subquery on material_nodes
// to query/args when the repository is tenant-scoped, leaving both
// unchanged for a system-wide repository.
func (r *Repository) scopeNodeMutation(query string, args []interface{}) (string, []interface{}) {
	if r.tenantID == nil {
		return query, args
	}
	query += " AND course_id IN (SELECT id FROM courses WHERE tenant_id = $" + strconv.Itoa(len(args)+1) + ")"
	return query, append(args, *r.tenantID)
}

// scopeEntryMutation appends a tenant-ownership subquery on
// material_entries (via its node's course) to query/args when the
// repository is tenant-scoped, leaving both unchanged for a system-wide
// repository.
func (r *Repository) scopeEntryMutation(query string, args []interface{}) (string, []interface{}) {
	if r.tenantID == nil {
		return query, args
	}
	query += ` AND node_id IN (
		SELECT mn.id FROM material_nodes mn JOIN courses c ON c.id = mn.course_id WHERE c.tenant_id = $` + strconv.Itoa(len(args)+1) + `
	)`
	return query, append(args, *r.tenantID)
}

// checkOwned turns a zero-row UPDATE into a NotFound: under tenant
// scoping that means the row exists but belongs to another tenant, or
// does not exist at all — the two are indistinguishable externally, same
// as GetCourse.
func (r *Repository) checkOwned(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	if n == 0 {
		return svcerrors.NotFound(kind, id)
	}
	return nil
}

func scanNode(row interface{ Scan(...interface{}) error }) (*domain.MaterialNode, error) {
	var n domain.MaterialNode
	var parentID sql.NullString
	var fingerprint sql.NullString
	if err := row.Scan(&n.ID, &n.CourseID, &parentID, &n.Title, &n.Description, &n.Order, &fingerprint); err != nil {
		return nil, err
	}
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	if fingerprint.Valid {
		n.NodeFingerprint = &fingerprint.String
	}
	return &n, nil
}

func scanEntry(row interface{ Scan(...interface{}) error }) (*domain.MaterialEntry, error) {
	var e domain.MaterialEntry
	var sourceURL, filename, mimeType, storageKey, processedContent, contentFingerprint, errorMessage sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&e.ID, &e.NodeID, &e.SourceType, &sourceURL, &filename, &mimeType, &storageKey, &e.State,
		&processedContent, &contentFingerprint, &errorMessage, &processedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sourceURL.Valid {
		e.SourceURL = &sourceURL.String
	}
	if filename.Valid {
		e.Filename = &filename.String
	}
	if mimeType.Valid {
		e.MimeType = &mimeType.String
	}
	if storageKey.Valid {
		e.StorageKey = &storageKey.String
	}
	if processedContent.Valid {
		e.ProcessedContent = &processedContent.String
	}
	if contentFingerprint.Valid {
		e.ContentFingerprint = &contentFingerprint.String
	}
	if errorMessage.Valid {
		e.ErrorMessage = &errorMessage.String
	}
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return &e, nil
}
