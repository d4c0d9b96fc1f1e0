// Package workwindow decides whether heavy tasks may run "now" and when
// the next opening is.
package workwindow

import "time"

// Window is a daily time-of-day interval during which heavy normal-priority
// jobs may run. Overnight windows (Start > End) are supported; a disabled
// window behaves as 24/7.
type Window struct {
	Start    time.Time // time-of-day only; date component ignored
	End      time.Time
	Location *time.Location
	Enabled  bool
}

// New builds a Window from "HH:MM" start/end strings in the named timezone.
func New(startHHMM, endHHMM, tz string, enabled bool) (Window, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Window{}, err
	}
	start, err := time.Parse("15:04", startHHMM)
	if err != nil {
		return Window{}, err
	}
	end, err := time.Parse("15:04", endHHMM)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end, Location: loc, Enabled: enabled}, nil
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// IsActiveNow reports whether the window is open at now.
func (w Window) IsActiveNow(now time.Time) bool {
	if !w.Enabled {
		return true
	}
	now = now.In(w.Location)
	nowTOD := timeOfDay(now)
	startTOD := timeOfDay(w.Start)
	endTOD := timeOfDay(w.End)

	if startTOD <= endTOD {
		return nowTOD >= startTOD && nowTOD < endTOD
	}
	// Overnight window: active iff now >= start OR now < end.
	return nowTOD >= startTOD || nowTOD < endTOD
}

// NextStart returns the next instant at which the window opens: today if
// now is before today's start, otherwise tomorrow.
func (w Window) NextStart(now time.Time) time.Time {
	now = now.In(w.Location)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), w.Start.Hour(), w.Start.Minute(), w.Start.Second(), 0, w.Location)
	if !w.Enabled {
		return now
	}
	if now.Before(candidate) {
		return candidate
	}
	return candidate.AddDate(0, 0, 1)
}

// RemainingToday returns the non-negative duration until the window closes
// today, or zero if the window is not open now.
func (w Window) RemainingToday(now time.Time) time.Duration {
	if !w.Enabled {
		return 24 * time.Hour
	}
	if !w.IsActiveNow(now) {
		return 0
	}
	now = now.In(w.Location)
	endTOD := timeOfDay(w.End)
	nowTOD := timeOfDay(now)
	startTOD := timeOfDay(w.Start)

	if startTOD <= endTOD {
		return endTOD - nowTOD
	}
	// Overnight: close time is "tomorrow" if we're still before midnight,
	// else later today.
	if nowTOD >= startTOD {
		return (24*time.Hour - nowTOD) + endTOD
	}
	return endTOD - nowTOD
}
