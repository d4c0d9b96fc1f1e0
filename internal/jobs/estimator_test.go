package jobs

import (
	"testing"
	"time"

	"github.com/course-supporter/platform/internal/workwindow"
)

func disabledWindow(t *testing.T) workwindow.Window {
	t.Helper()
	w, err := workwindow.New("02:00", "06:30", "UTC", false)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func enabledWindow(t *testing.T) workwindow.Window {
	t.Helper()
	w, err := workwindow.New("02:00", "06:30", "UTC", true)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestEstimateDisabledWindowIsWallClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	est, err := EstimateQueueTime(now, 0, 10*time.Minute, disabledWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	want := now.Add(10 * time.Minute)
	if !est.EstimatedComplete.Equal(want) {
		t.Fatalf("expected %v, got %v", want, est.EstimatedComplete)
	}
}

func TestEstimateEnabledWindowFallsWithinOpenWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC) // before window opens at 02:00
	est, err := EstimateQueueTime(now, 0, 30*time.Minute, enabledWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	if est.EstimatedComplete.Before(time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected completion after window opens, got %v", est.EstimatedComplete)
	}
	if est.NextWindowStart == nil {
		t.Fatalf("expected NextWindowStart to be set when starting outside window")
	}
}

func TestEstimatePositionInQueue(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	est, err := EstimateQueueTime(now, 3, time.Minute, disabledWindow(t))
	if err != nil {
		t.Fatal(err)
	}
	if est.PositionInQueue != 4 {
		t.Fatalf("expected position 4, got %d", est.PositionInQueue)
	}
}
