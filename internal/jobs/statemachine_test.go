package jobs

import (
	"testing"
	"time"

	"github.com/course-supporter/platform/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestTransitionQueuedToActive(t *testing.T) {
	job := &domain.Job{Status: domain.JobQueued}
	if err := Transition(job, domain.JobActive, time.Now()); err != nil {
		t.Fatal(err)
	}
	if job.Status != domain.JobActive || job.StartedAt == nil {
		t.Fatalf("expected active with StartedAt set, got %+v", job)
	}
}

func TestTransitionIllegalFailsAndLeavesRowUnchanged(t *testing.T) {
	job := &domain.Job{Status: domain.JobQueued, ResultMaterialID: nil}
	err := Transition(job, domain.JobComplete, time.Now())
	if err == nil {
		t.Fatalf("expected StatusTransitionError")
	}
	if job.Status != domain.JobQueued {
		t.Fatalf("expected row unchanged after illegal transition, got %v", job.Status)
	}
}

func TestTransitionCompleteRequiresExactlyOneResult(t *testing.T) {
	job := &domain.Job{Status: domain.JobActive}
	if err := Transition(job, domain.JobComplete, time.Now()); err == nil {
		t.Fatalf("expected failure with neither result set")
	}

	job2 := &domain.Job{
		Status:           domain.JobActive,
		ResultMaterialID: strPtr("m1"),
		ResultSnapshotID: strPtr("s1"),
	}
	if err := Transition(job2, domain.JobComplete, time.Now()); err == nil {
		t.Fatalf("expected failure with both results set")
	}

	job3 := &domain.Job{Status: domain.JobActive, ResultMaterialID: strPtr("m1")}
	if err := Transition(job3, domain.JobComplete, time.Now()); err != nil {
		t.Fatalf("expected success with exactly one result, got %v", err)
	}
}

func TestTransitionFailedCanRetryToQueued(t *testing.T) {
	job := &domain.Job{Status: domain.JobFailed, ErrorMessage: strPtr("boom")}
	if err := Transition(job, domain.JobQueued, time.Now()); err != nil {
		t.Fatal(err)
	}
	if job.ErrorMessage != nil {
		t.Fatalf("expected error_message cleared on retry")
	}
}

func TestTransitionTerminalStatesAreClosed(t *testing.T) {
	for _, terminal := range []domain.JobStatus{domain.JobComplete, domain.JobCancelled} {
		job := &domain.Job{Status: terminal}
		if err := Transition(job, domain.JobActive, time.Now()); err == nil {
			t.Fatalf("expected terminal state %s to reject further transitions", terminal)
		}
	}
}

func TestTransitionMaterialDoneRequiresProcessedAt(t *testing.T) {
	entry := &domain.MaterialEntry{State: domain.MaterialPending}
	now := time.Now()
	if err := TransitionMaterial(entry, domain.MaterialReady, now); err != nil {
		t.Fatal(err)
	}
	if entry.ProcessedAt == nil {
		t.Fatalf("expected ProcessedAt set")
	}
}

func TestTransitionMaterialErrorRequiresMessage(t *testing.T) {
	entry := &domain.MaterialEntry{State: domain.MaterialPending}
	if err := TransitionMaterial(entry, domain.MaterialError, time.Now()); err == nil {
		t.Fatalf("expected failure without error message")
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	statuses := map[string]domain.JobStatus{
		"dep1": domain.JobComplete,
	}
	ok, err := DependenciesSatisfied("j1", []string{"dep1"}, statuses)
	if err != nil || !ok {
		t.Fatalf("expected satisfied, got %v %v", ok, err)
	}
}

func TestDependenciesFailedPropagates(t *testing.T) {
	statuses := map[string]domain.JobStatus{
		"dep1": domain.JobFailed,
	}
	_, err := DependenciesSatisfied("j1", []string{"dep1"}, statuses)
	if err == nil {
		t.Fatalf("expected DependencyFailed error")
	}
}

func TestDependenciesPendingReturnsNotSatisfiedNoError(t *testing.T) {
	statuses := map[string]domain.JobStatus{
		"dep1": domain.JobActive,
	}
	ok, err := DependenciesSatisfied("j1", []string{"dep1"}, statuses)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected not satisfied while dependency active")
	}
}
