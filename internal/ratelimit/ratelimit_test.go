package ratelimit

import (
	"testing"
	"time"
)

func TestCheckAllowsUpToLimit(t *testing.T) {
	l := New(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		allowed, _ := l.Check("tenant:scope", 3)
		if !allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
	}

	allowed, retryAfter := l.Check("tenant:scope", 3)
	if allowed {
		t.Fatalf("expected 4th call denied")
	}
	if retryAfter < 1 {
		t.Fatalf("expected retryAfter >= 1, got %d", retryAfter)
	}
}

func TestCheckWindowSlides(t *testing.T) {
	l := New(10 * time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }

	l.Check("k", 1)
	allowed, _ := l.Check("k", 1)
	if allowed {
		t.Fatalf("expected second call within window denied")
	}

	now = now.Add(11 * time.Second)
	allowed, _ = l.Check("k", 1)
	if !allowed {
		t.Fatalf("expected call after window to slide through")
	}
}

func TestCleanupEvictsEmptyKeys(t *testing.T) {
	l := New(time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }

	l.Check("k", 5)
	now = now.Add(2 * time.Second)
	l.Cleanup()

	if _, ok := l.hits["k"]; ok {
		t.Fatalf("expected key evicted after cleanup")
	}
}
