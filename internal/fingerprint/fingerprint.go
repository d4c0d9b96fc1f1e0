// Package fingerprint computes and caches the bottom-up Merkle hash of a
// course's material tree.
//
// Lazy caches on mutable rows require a clear invalidation contract: any
// mutation of processed_content or of a node's children must clear the
// ancestor chain up to root in the same transaction as the mutation; that
// invalidation is the caller's responsibility (see tree.InvalidateAncestors),
// not this package's.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Store is the minimal persistence surface the fingerprint service needs.
// Implemented by the material-tree repository.
type Store interface {
	ChildNodes(ctx context.Context, nodeID string) ([]*domain.MaterialNode, error)
	Entries(ctx context.Context, nodeID string) ([]*domain.MaterialEntry, error)
	SetEntryFingerprint(ctx context.Context, entryID, fingerprint string) error
	SetNodeFingerprint(ctx context.Context, nodeID, fingerprint string) error
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// EnsureMaterialFP returns entry's content fingerprint, computing and
// persisting it on first use.
func (s *Service) EnsureMaterialFP(ctx context.Context, entry *domain.MaterialEntry) (string, error) {
	if entry.ContentFingerprint != nil {
		return *entry.ContentFingerprint, nil
	}
	if entry.ProcessedContent == nil {
		return "", svcerrors.UnprocessedEntry(entry.ID)
	}

	sum := sha256.Sum256([]byte(*entry.ProcessedContent))
	fp := hex.EncodeToString(sum[:])

	if err := s.store.SetEntryFingerprint(ctx, entry.ID, fp); err != nil {
		return "", svcerrors.DatabaseError(err)
	}
	entry.ContentFingerprint = &fp
	return fp, nil
}

// EnsureNodeFP returns node's subtree fingerprint, recursing into children
// bottom-up and caching along the way. Unprocessed entries are skipped so
// the fingerprint reflects only ready content.
func (s *Service) EnsureNodeFP(ctx context.Context, node *domain.MaterialNode) (string, error) {
	if node.NodeFingerprint != nil {
		return *node.NodeFingerprint, nil
	}

	children, err := s.store.ChildNodes(ctx, node.ID)
	if err != nil {
		return "", svcerrors.DatabaseError(err)
	}
	entries, err := s.store.Entries(ctx, node.ID)
	if err != nil {
		return "", svcerrors.DatabaseError(err)
	}

	var parts []string
	for _, entry := range entries {
		if entry.ProcessedContent == nil {
			continue
		}
		fp, err := s.EnsureMaterialFP(ctx, entry)
		if err != nil {
			return "", err
		}
		parts = append(parts, "m:"+fp)
	}
	for _, child := range children {
		fp, err := s.EnsureNodeFP(ctx, child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "n:"+fp)
	}

	sort.Strings(parts)
	joined := strings.Join(parts, "\n")
	sum := sha256.Sum256([]byte(joined))
	fp := hex.EncodeToString(sum[:])

	if err := s.store.SetNodeFingerprint(ctx, node.ID, fp); err != nil {
		return "", svcerrors.DatabaseError(err)
	}
	node.NodeFingerprint = &fp
	return fp, nil
}
