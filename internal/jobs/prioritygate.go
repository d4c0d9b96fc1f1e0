package jobs

import (
	"time"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/workwindow"
)

// Defer is raised by CheckWorkWindow when a normal-priority job must wait
// for the window to open; the external queue re-delivers the task after
// DeferSeconds and this does not count against max_tries.
type Defer struct {
	DeferSeconds int64
}

func (d *Defer) Error() string { return "deferred pending work window" }

// CheckWorkWindow returns a *Defer for normal-priority jobs outside an
// enabled window. Immediate priority and disabled windows always pass.
func CheckWorkWindow(priority domain.JobPriority, window workwindow.Window, now time.Time) error {
	if priority == domain.PriorityImmediate {
		return nil
	}
	if !window.Enabled {
		return nil
	}
	if window.IsActiveNow(now) {
		return nil
	}
	seconds := int64(window.NextStart(now).Sub(now) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &Defer{DeferSeconds: seconds}
}
