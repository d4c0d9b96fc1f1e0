package auth

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Repository persists APIKey rows and authenticates incoming requests by
// hash lookup.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create issues and persists a new key, returning the plaintext key to
// show the caller exactly once.
func (r *Repository) Create(ctx context.Context, tenantID, label string, scopes []string, env string) (fullKey string, key *domain.APIKey, err error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey(env)
	if err != nil {
		return "", nil, svcerrors.Internal(err)
	}

	key = &domain.APIKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Label:     label,
		Scopes:    scopes,
		IsActive:  true,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, tenant_id, key_hash, key_prefix, label, scopes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, key.ID, key.TenantID, key.KeyHash, key.KeyPrefix, key.Label, pq.Array(key.Scopes), key.IsActive)
	if err != nil {
		return "", nil, svcerrors.DatabaseError(err)
	}

	return fullKey, key, nil
}

// Authenticate looks up an active key by the hash of the presented
// plaintext key and returns a TenantContext.
func (r *Repository) Authenticate(ctx context.Context, presentedKey string) (TenantContext, error) {
	hash := HashAPIKey(presentedKey)

	var tc TenantContext
	var scopes pq.StringArray
	var isActive bool

	row := r.db.QueryRowContext(ctx, `
		SELECT k.tenant_id, t.name, k.scopes, k.rate_limit_prep, k.rate_limit_check, k.key_prefix, k.is_active
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.key_hash = $1
	`, hash)

	err := row.Scan(&tc.TenantID, &tc.TenantName, &scopes, &tc.RateLimitPrep, &tc.RateLimitCheck, &tc.KeyPrefix, &isActive)
	if err == sql.ErrNoRows {
		return TenantContext{}, svcerrors.Unauthorized("invalid API key")
	}
	if err != nil {
		return TenantContext{}, svcerrors.DatabaseError(err)
	}
	if !isActive {
		return TenantContext{}, svcerrors.Unauthorized("API key revoked")
	}

	tc.Scopes = []string(scopes)
	return tc, nil
}

// Revoke deactivates a key, verifying it belongs to tenantID first.
func (r *Repository) Revoke(ctx context.Context, tenantID, keyID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET is_active = false WHERE id = $1 AND tenant_id = $2
	`, keyID, tenantID)
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return svcerrors.DatabaseError(err)
	}
	if n == 0 {
		return svcerrors.NotFound("api_key", keyID)
	}
	return nil
}
