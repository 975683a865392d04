package journal

import (
	"time"
)

// Outcome is the result of one transfer attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetried   Outcome = "retried"
	OutcomeFailed    Outcome = "failed"
)

// Entry records a single transfer attempt for later inspection.
type Entry struct {
	Bucket     string
	Object     string
	Attempt    int
	Outcome    Outcome
	ErrorClass string
	Message    string
	Duration   time.Duration
	At         time.Time
}

// Writer persists attempt entries.
type Writer interface {
	Record(e Entry) error
	Close() error
}

// Discard is a Writer that drops every entry, for runs without a journal.
type Discard struct{}

func (Discard) Record(Entry) error { return nil }
func (Discard) Close() error       { return nil }
