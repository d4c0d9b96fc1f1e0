package workwindow

import (
	"testing"
	"time"
)

func TestIsActiveNowOvernight(t *testing.T) {
	w, err := New("22:00", "06:00", "UTC", true)
	if err != nil {
		t.Fatal(err)
	}

	inWindow := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	if !w.IsActiveNow(inWindow) {
		t.Fatalf("expected 23:00 to be inside overnight window")
	}

	afterMidnight := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	if !w.IsActiveNow(afterMidnight) {
		t.Fatalf("expected 03:00 to be inside overnight window")
	}

	outside := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if w.IsActiveNow(outside) {
		t.Fatalf("expected noon to be outside overnight window")
	}
}

func TestDisabledWindowIs247(t *testing.T) {
	w, err := New("02:00", "06:00", "UTC", false)
	if err != nil {
		t.Fatal(err)
	}
	for h := 0; h < 24; h++ {
		now := time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC)
		if !w.IsActiveNow(now) {
			t.Fatalf("expected disabled window active at hour %d", h)
		}
	}
}

func TestNextStartTodayOrTomorrow(t *testing.T) {
	w, err := New("02:00", "06:00", "UTC", true)
	if err != nil {
		t.Fatal(err)
	}

	beforeOpen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := w.NextStart(beforeOpen)
	if next.Day() != 1 || next.Hour() != 2 {
		t.Fatalf("expected today at 02:00, got %v", next)
	}

	afterOpen := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	next2 := w.NextStart(afterOpen)
	if next2.Day() != 2 || next2.Hour() != 2 {
		t.Fatalf("expected tomorrow at 02:00, got %v", next2)
	}
}

func TestRemainingTodayZeroOutsideWindow(t *testing.T) {
	w, err := New("02:00", "06:00", "UTC", true)
	if err != nil {
		t.Fatal(err)
	}
	outside := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if w.RemainingToday(outside) != 0 {
		t.Fatalf("expected zero remaining outside window")
	}
}
