// Package conflict decides whether a new generation request overlaps an
// already-active one over the same course's material tree.
package conflict

import (
	"context"

	"github.com/course-supporter/platform/internal/domain"
)

// NodeLookup is the minimal ancestor-chain access the detector needs.
type NodeLookup interface {
	Node(ctx context.Context, nodeID string) (*domain.MaterialNode, error)
}

// Result describes a detected overlap.
type Result struct {
	ConflictingJobID   string
	ConflictingJobNode *string
	Reason             string
}

// ActiveJobs are the queued+active jobs for the same course, as
// (jobID, nodeID) pairs; nodeID nil means whole-course scope.
type ActiveJob struct {
	JobID  string
	NodeID *string
}

// Detect returns the first active job whose scope overlaps targetNodeID
// (nil meaning whole-course), or nil if none overlap.
func Detect(ctx context.Context, lookup NodeLookup, targetNodeID *string, active []ActiveJob) (*Result, error) {
	for _, job := range active {
		overlap, reason, err := Overlap(ctx, lookup, targetNodeID, job.NodeID)
		if err != nil {
			return nil, err
		}
		if overlap {
			return &Result{
				ConflictingJobID:   job.JobID,
				ConflictingJobNode: job.NodeID,
				Reason:             reason,
			}, nil
		}
	}
	return nil, nil
}

// Overlap reports whether scope a and scope b (each nil meaning whole
// course, or a node ID) are not disjoint. Overlap is symmetric.
func Overlap(ctx context.Context, lookup NodeLookup, a, b *string) (bool, string, error) {
	// Fast path: no DB access needed.
	if a == nil || b == nil {
		return true, "active job covers entire course", nil
	}
	if *a == *b {
		return true, "identical target scope", nil
	}

	// Slow path: walk a's ancestor chain looking for b.
	if found, err := isAncestorOf(ctx, lookup, *a, *b); err != nil {
		return false, "", err
	} else if found {
		return true, "target nested inside active scope", nil
	}

	// Walk b's ancestor chain looking for a.
	if found, err := isAncestorOf(ctx, lookup, *b, *a); err != nil {
		return false, "", err
	} else if found {
		return true, "active nested inside new request", nil
	}

	return false, "", nil
}

// isAncestorOf reports whether ancestorCandidate appears somewhere in
// startNodeID's parent chain (inclusive check is done by callers via
// equality before calling this, since this starts from startNodeID's
// parent). Defends against cycles with a visited set.
func isAncestorOf(ctx context.Context, lookup NodeLookup, startNodeID, ancestorCandidate string) (bool, error) {
	visited := map[string]bool{}
	current := startNodeID
	for {
		if visited[current] {
			return false, nil
		}
		visited[current] = true

		node, err := lookup.Node(ctx, current)
		if err != nil {
			return false, err
		}
		if node == nil || node.ParentID == nil {
			return false, nil
		}
		if *node.ParentID == ancestorCandidate {
			return true, nil
		}
		current = *node.ParentID
	}
}
