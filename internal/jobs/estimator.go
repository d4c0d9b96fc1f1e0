package jobs

import (
	"fmt"
	"time"

	"github.com/course-supporter/platform/internal/workwindow"
)

// safetyCap bounds the window-advancing loop against a misconfigured
// window (e.g. a window whose remaining-today never accumulates enough
// work time to drain the queue).
const safetyCap = 400

// Estimate describes the predicted queue position and timing for a job
// about to be queued behind queueDepth existing jobs.
type Estimate struct {
	PositionInQueue   int
	EstimatedStart    time.Time
	EstimatedComplete time.Time
	NextWindowStart   *time.Time
	HumanSummary      string
}

// EstimateQueueTime advances wall-clock time through closed windows,
// consuming avgJobDuration per queued job ahead of this one plus this
// job's own duration. A disabled window degenerates to plain wall-clock
// arithmetic.
func EstimateQueueTime(now time.Time, queueDepth int, avgJobDuration time.Duration, window workwindow.Window) (Estimate, error) {
	totalWork := avgJobDuration * time.Duration(queueDepth+1)
	cursor := now
	remaining := totalWork

	var nextWindowStart *time.Time
	iterations := 0

	for remaining > 0 {
		iterations++
		if iterations > safetyCap {
			return Estimate{}, fmt.Errorf("queue estimator exceeded safety cap of %d iterations", safetyCap)
		}

		if !window.IsActiveNow(cursor) {
			opening := window.NextStart(cursor)
			if nextWindowStart == nil {
				nextWindowStart = &opening
			}
			cursor = opening
			continue
		}

		available := window.RemainingToday(cursor)
		if available <= 0 {
			opening := window.NextStart(cursor)
			cursor = opening
			continue
		}

		if available >= remaining {
			cursor = cursor.Add(remaining)
			remaining = 0
		} else {
			cursor = cursor.Add(available)
			remaining -= available
			// Push past the close of today's window so the next loop
			// iteration's IsActiveNow check correctly reports closed.
			cursor = cursor.Add(time.Second)
		}
	}

	estimatedComplete := cursor
	estimatedStart := now
	if queueDepth > 0 {
		startEstimate, err := EstimateQueueTime(now, 0, avgJobDuration*time.Duration(queueDepth), window)
		if err == nil {
			estimatedStart = startEstimate.EstimatedComplete
		}
	}

	summary := fmt.Sprintf("position %d in queue, estimated start %s, estimated completion %s",
		queueDepth+1, estimatedStart.Format(time.RFC3339), estimatedComplete.Format(time.RFC3339))

	return Estimate{
		PositionInQueue:   queueDepth + 1,
		EstimatedStart:    estimatedStart,
		EstimatedComplete: estimatedComplete,
		NextWindowStart:   nextWindowStart,
		HumanSummary:      summary,
	}, nil
}
