package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrManifestCorrupt indicates the persisted manifest cannot be parsed.
// The caller decides whether to abort or regenerate; the store never guesses.
var ErrManifestCorrupt = errors.New("manifest file is corrupt")

// fileFormatVersion guards against loading snapshots written by an
// incompatible release.
const fileFormatVersion = 1

type snapshot struct {
	Version int     `json:"version"`
	Tasks   []*Task `json:"tasks"`
}

// Store is the durable record of every transfer task. All mutation is
// serialized through a single mutex; workers never edit tasks in place.
type Store struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	tasks map[Key]*Task
}

// Open loads the manifest at path, or starts an empty one if the file
// does not exist yet. A parse failure is reported as ErrManifestCorrupt.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		tasks:  make(map[Key]*Task),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w: %v", path, ErrManifestCorrupt, err)
	}
	if snap.Version != fileFormatVersion {
		return nil, fmt.Errorf("manifest %s version %d: %w", path, snap.Version, ErrManifestCorrupt)
	}

	for _, t := range snap.Tasks {
		s.tasks[t.Key()] = t
	}

	logger.Info("Loaded manifest",
		zap.String("path", path),
		zap.Int("tasks", len(s.tasks)),
	)
	return s, nil
}

// Add inserts a new pending task during manifest generation. It is
// idempotent per key and reports whether the task was inserted.
func (s *Store) Add(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.Key()
	if _, exists := s.tasks[key]; exists {
		return false
	}

	if t.Status == "" {
		t.Status = StatusPending
	}
	t.UpdatedAt = time.Now()
	s.tasks[key] = t
	return true
}

// Get returns a copy of the task for key, if present.
func (s *Store) Get(key Key) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Len returns the number of tasks in the manifest.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Query returns copies of all tasks whose status is in the given set,
// sorted by key for a stable order.
func (s *Store) Query(statuses ...Status) []*Task {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.Lock()
	var out []*Task
	for _, t := range s.tasks {
		if want[t.Status] {
			c := *t
			out = append(out, &c)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Bucket != out[j].Bucket {
			return out[i].Bucket < out[j].Bucket
		}
		return out[i].Object < out[j].Object
	})
	return out
}

// Update records a status transition for key. Transitions into a terminal
// status (completed/failed) trigger a snapshot persist so a crash loses at
// most the transitions since the last terminal event.
func (s *Store) Update(key Key, status Status, attempts int, errCategory, errMsg string) error {
	s.mu.Lock()

	t, ok := s.tasks[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: task not in manifest", key)
	}

	t.Status = status
	t.Attempts = attempts
	t.ErrorCategory = errCategory
	t.LastError = errMsg
	t.UpdatedAt = time.Now()

	if status != StatusCompleted && status != StatusFailed {
		s.mu.Unlock()
		return nil
	}

	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// RequeueFailed transitions every failed task back to pending for a
// retry-mode run. When resetAttempts is true the attempt counter starts
// over, otherwise history is preserved. Returns the number of tasks
// requeued.
func (s *Store) RequeueFailed(resetAttempts bool) (int, error) {
	s.mu.Lock()

	n := 0
	for _, t := range s.tasks {
		if t.Status != StatusFailed {
			continue
		}
		t.Status = StatusPending
		if resetAttempts {
			t.Attempts = 0
		}
		t.ErrorCategory = ""
		t.LastError = ""
		t.UpdatedAt = time.Now()
		n++
	}

	var err error
	if n > 0 {
		err = s.persistLocked()
	}
	s.mu.Unlock()
	return n, err
}

// RequeueInProgress transitions tasks stranded in_progress by a previous
// crashed run back to pending. Used by the lease-cleanup recovery step.
func (s *Store) RequeueInProgress() (int, error) {
	s.mu.Lock()

	n := 0
	for _, t := range s.tasks {
		if t.Status != StatusInProgress {
			continue
		}
		t.Status = StatusPending
		t.UpdatedAt = time.Now()
		n++
	}

	var err error
	if n > 0 {
		err = s.persistLocked()
	}
	s.mu.Unlock()
	return n, err
}

// Stats summarizes the manifest by status.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			st.Pending++
		case StatusInProgress:
			st.InProgress++
		case StatusCompleted:
			st.Completed++
			st.CompletedBytes += t.Size
		case StatusFailed:
			st.Failed++
		}
		st.TotalBytes += t.Size
	}
	return st
}

// Persist writes the full current state to disk.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// persistLocked writes a full snapshot to a temp file in the target
// directory and renames it into place, so a concurrent load never
// observes a half-written manifest.
func (s *Store) persistLocked() error {
	snap := snapshot{Version: fileFormatVersion, Tasks: make([]*Task, 0, len(s.tasks))}
	for _, t := range s.tasks {
		snap.Tasks = append(snap.Tasks, t)
	}
	sort.Slice(snap.Tasks, func(i, j int) bool {
		if snap.Tasks[i].Bucket != snap.Tasks[j].Bucket {
			return snap.Tasks[i].Bucket < snap.Tasks[j].Bucket
		}
		return snap.Tasks[i].Object < snap.Tasks[j].Object
	})

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp manifest: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
