package manifest

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a transfer task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Key identifies a task by its (bucket, object) pair
type Key struct {
	Bucket string
	Object string
}

func (k Key) String() string {
	return k.Bucket + "/" + k.Object
}

// Task is one unit of transfer tracked by the manifest
type Task struct {
	Bucket        string    `json:"bucket"`
	Object        string    `json:"object"`
	Size          int64     `json:"size"`
	Destination   string    `json:"destination"`
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	ErrorCategory string    `json:"error_category,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Key returns the task's identity within the manifest
func (t *Task) Key() Key {
	return Key{Bucket: t.Bucket, Object: t.Object}
}

// Stats summarizes the manifest by status
type Stats struct {
	Pending        int
	InProgress     int
	Completed      int
	Failed         int
	TotalBytes     int64
	CompletedBytes int64
}

func (s Stats) Total() int {
	return s.Pending + s.InProgress + s.Completed + s.Failed
}

func (s Stats) String() string {
	return fmt.Sprintf("pending=%d in_progress=%d completed=%d failed=%d",
		s.Pending, s.InProgress, s.Completed, s.Failed)
}
