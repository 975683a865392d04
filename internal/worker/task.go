package worker

import (
	"time"

	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
)

// Task is one unit of transfer handed to a worker.
type Task struct {
	Bucket      string
	Object      string
	Size        int64
	Destination string
	// Attempts carries history from earlier runs when the retry mode is
	// configured to preserve the counter.
	Attempts int
}

// Key returns the task's manifest identity.
func (t Task) Key() manifest.Key {
	return manifest.Key{Bucket: t.Bucket, Object: t.Object}
}

// Config contains worker configuration
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Outcome is a worker's terminal report for one task.
type Outcome int

const (
	// OutcomeCompleted means the transfer succeeded.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means retries were exhausted or the error was permanent.
	OutcomeFailed
	// OutcomeSkipped means another owner holds the task's lease.
	OutcomeSkipped
	// OutcomeAborted means the run is shutting down; the task stays
	// in_progress and its lease marker is left for operator cleanup.
	OutcomeAborted
)

// Backoff returns the delay before the retry that follows failed attempt
// number attempt (1-based): base doubled per attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
