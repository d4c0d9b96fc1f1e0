// Package tree provides BFS traversal, subtree flattening, readiness
// checking, and ancestor fingerprint invalidation over the material tree.
package tree

import (
	"context"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

// Store is the persistence surface tree operations need.
type Store interface {
	ChildNodes(ctx context.Context, nodeID string) ([]*domain.MaterialNode, error)
	Entries(ctx context.Context, nodeID string) ([]*domain.MaterialEntry, error)
	Node(ctx context.Context, nodeID string) (*domain.MaterialNode, error)
	ClearFingerprint(ctx context.Context, nodeID string) error
}

// StaleEntry describes one non-ready entry found by the readiness checker.
type StaleEntry struct {
	EntryID   string
	Filename  string
	State     domain.MaterialEntryState
	NodeID    string
	NodeTitle string
}

// BFSSubtree returns nodeID and every descendant, in breadth-first order.
func BFSSubtree(ctx context.Context, store Store, nodeID string) ([]*domain.MaterialNode, error) {
	root, err := store.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, svcerrors.NodeNotFound(nodeID)
	}

	var result []*domain.MaterialNode
	queue := []*domain.MaterialNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)

		children, err := store.ChildNodes(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}
	return result, nil
}

// CheckSubtree walks every descendant of nodeID and reports entries whose
// state is RAW or INTEGRITY_BROKEN. PENDING and ERROR do not block
// generation; they simply contribute no content.
func CheckSubtree(ctx context.Context, store Store, nodeID string) (ready bool, stale []StaleEntry, err error) {
	nodes, err := BFSSubtree(ctx, store, nodeID)
	if err != nil {
		return false, nil, err
	}

	for _, n := range nodes {
		entries, err := store.Entries(ctx, n.ID)
		if err != nil {
			return false, nil, svcerrors.DatabaseError(err)
		}
		for _, e := range entries {
			if e.State == domain.MaterialRaw || e.State == domain.MaterialIntegrityBroken {
				filename := ""
				if e.Filename != nil {
					filename = *e.Filename
				}
				stale = append(stale, StaleEntry{
					EntryID:   e.ID,
					Filename:  filename,
					State:     e.State,
					NodeID:    n.ID,
					NodeTitle: n.Title,
				})
			}
		}
	}
	return len(stale) == 0, stale, nil
}

// InvalidateAncestors clears the cached fingerprint on nodeID and every
// ancestor up to the root, as required whenever processed_content or a
// node's children change. Must run in the same transaction as the
// triggering mutation.
func InvalidateAncestors(ctx context.Context, store Store, nodeID string) error {
	current := nodeID
	for current != "" {
		if err := store.ClearFingerprint(ctx, current); err != nil {
			return svcerrors.DatabaseError(err)
		}
		node, err := store.Node(ctx, current)
		if err != nil {
			return svcerrors.DatabaseError(err)
		}
		if node == nil || node.ParentID == nil {
			break
		}
		current = *node.ParentID
	}
	return nil
}
