// Package auth implements API key issuance, hashing, tenant context
// injection, and scope enforcement.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/course-supporter/platform/internal/svcerrors"
)

// GenerateAPIKey returns (fullKey, keyHash, keyPrefix) for a freshly issued
// credential. The full key is returned to the caller exactly once; only
// the hash and prefix are ever persisted.
func GenerateAPIKey(env string) (fullKey, keyHash, keyPrefix string, err error) {
	raw := make([]byte, 16) // 128 bits
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generate api key: %w", err)
	}
	random := hex.EncodeToString(raw) // 32 lowercase hex chars

	fullKey = fmt.Sprintf("cs_%s_%s", env, random)
	keyHash = HashAPIKey(fullKey)
	keyPrefix = fmt.Sprintf("cs_%s_%s", env, random[:4])
	return fullKey, keyHash, keyPrefix, nil
}

// HashAPIKey returns the SHA-256 hex digest used for lookup.
func HashAPIKey(fullKey string) string {
	sum := sha256.Sum256([]byte(fullKey))
	return hex.EncodeToString(sum[:])
}

// TenantContext is injected into request state after successful
// authentication.
type TenantContext struct {
	TenantID       string
	TenantName     string
	Scopes         []string
	RateLimitPrep  int
	RateLimitCheck int
	KeyPrefix      string
}

// HasScope reports whether the context holds the given scope.
func (c TenantContext) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RequireScope admits iff the context holds at least one of the listed
// scopes.
func RequireScope(ctx TenantContext, scopes ...string) error {
	for _, scope := range scopes {
		if ctx.HasScope(scope) {
			return nil
		}
	}
	return svcerrors.Forbidden("missing required scope")
}

// ConstantTimeEqual compares two hashes without leaking timing
// information, used when comparing a freshly computed hash against a
// stored value outside of an indexed lookup.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
