// Package jobs implements the durable job record, its state machine,
// dependency resolution, and queue-time estimation.
package jobs

import (
	"time"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/svcerrors"
)

var jobTransitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobQueued:    {domain.JobActive, domain.JobCancelled},
	domain.JobActive:    {domain.JobComplete, domain.JobFailed},
	domain.JobComplete:  {},
	domain.JobCancelled: {},
	domain.JobFailed:    {domain.JobQueued},
}

func canTransitionJob(from, to domain.JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change to job in place. It
// does not persist; callers must save job afterward (transactionally,
// alongside any result pointer being set).
func Transition(job *domain.Job, to domain.JobStatus, now time.Time) error {
	if !canTransitionJob(job.Status, to) {
		return svcerrors.StatusTransitionError(string(job.Status), string(to))
	}

	switch to {
	case domain.JobComplete:
		hasMaterial := job.ResultMaterialID != nil
		hasSnapshot := job.ResultSnapshotID != nil
		if hasMaterial == hasSnapshot {
			return svcerrors.ValidationFailure("completing a job requires exactly one of result_material_id or result_snapshot_id")
		}
		job.CompletedAt = &now
	case domain.JobFailed:
		if job.ErrorMessage == nil || *job.ErrorMessage == "" {
			return svcerrors.ValidationFailure("failing a job requires an error_message")
		}
		job.CompletedAt = &now
	case domain.JobActive:
		job.StartedAt = &now
	case domain.JobQueued:
		// retry: clear terminal fields
		job.CompletedAt = nil
		job.ErrorMessage = nil
	}

	job.Status = to
	return nil
}

// TransitionMaterial applies the narrow pending/processing/done/error
// sub-machine, mapped onto the richer RAW/PENDING/READY/ERROR vocabulary:
// pending≡RAW, processing≡PENDING, done≡READY, error≡ERROR.
func TransitionMaterial(entry *domain.MaterialEntry, to domain.MaterialEntryState, now time.Time) error {
	allowed := map[domain.MaterialEntryState][]domain.MaterialEntryState{
		domain.MaterialRaw:     {domain.MaterialPending},
		domain.MaterialPending: {domain.MaterialReady, domain.MaterialError},
		domain.MaterialReady:   {},
		domain.MaterialError:   {},
	}

	found := false
	for _, candidate := range allowed[entry.State] {
		if candidate == to {
			found = true
			break
		}
	}
	if !found {
		return svcerrors.StatusTransitionError(string(entry.State), string(to))
	}

	switch to {
	case domain.MaterialReady:
		entry.ProcessedAt = &now
	case domain.MaterialError:
		if entry.ErrorMessage == nil || *entry.ErrorMessage == "" {
			return svcerrors.ValidationFailure("failing a material entry requires an error_message")
		}
	}

	entry.State = to
	return nil
}

// DependenciesSatisfied reports whether every job ID in dependsOn has
// reached domain.JobComplete, given a lookup of current statuses. If any
// dependency ended failed or cancelled, it returns a DependencyFailed error
// naming the offending dependency.
func DependenciesSatisfied(jobID string, dependsOn []string, statuses map[string]domain.JobStatus) (bool, error) {
	for _, dep := range dependsOn {
		status, ok := statuses[dep]
		if !ok {
			return false, nil
		}
		switch status {
		case domain.JobComplete:
			continue
		case domain.JobFailed, domain.JobCancelled:
			return false, svcerrors.DependencyFailed(jobID, dep)
		default:
			return false, nil
		}
	}
	return true, nil
}
