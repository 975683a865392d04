// Package lease grants exclusive ownership of a task to one worker for the
// task's full retry lifetime. Ownership is marked both in process memory
// and by an on-disk marker file, so two runs pointed at the same manifest
// cannot claim the same task.
package lease

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
)

// ErrLeaseConflict indicates another owner currently holds the task. The
// caller must skip the task rather than retry against it.
var ErrLeaseConflict = errors.New("lease already held")

// Lease is the ownership record for one task key. Only the holder may
// mutate the task's manifest entry while the lease is live.
type Lease struct {
	key      manifest.Key
	path     string
	released bool
}

// Key returns the task key the lease covers.
func (l *Lease) Key() manifest.Key {
	return l.key
}

// Manager creates and releases lease markers under a single directory.
type Manager struct {
	dir    string
	owner  string
	logger *zap.Logger

	mu   sync.Mutex
	held map[manifest.Key]*Lease
}

// NewManager prepares the lease directory and an owner identity derived
// from the host and process.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lease directory: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &Manager{
		dir:    dir,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
		logger: logger,
		held:   make(map[manifest.Key]*Lease),
	}, nil
}

// Acquire claims exclusive ownership of key. It fails with
// ErrLeaseConflict when any live lease exists, whether held by this
// process or marked on disk by another.
func (m *Manager) Acquire(key manifest.Key) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.held[key]; taken {
		return nil, fmt.Errorf("%s: %w", key, ErrLeaseConflict)
	}

	path := m.markerPath(key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrLeaseConflict)
		}
		return nil, fmt.Errorf("create lease marker for %s: %w", key, err)
	}

	fmt.Fprintf(f, "owner=%s\nkey=%s\nacquired=%s\n",
		m.owner, key, time.Now().Format(time.RFC3339))
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lease marker for %s: %w", key, err)
	}

	l := &Lease{key: key, path: path}
	m.held[key] = l
	return l, nil
}

// Release gives up ownership. Releasing a lease twice is a no-op.
func (m *Manager) Release(l *Lease) {
	if l == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l.released {
		return
	}
	l.released = true
	delete(m.held, l.key)

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Failed to remove lease marker",
			zap.String("key", l.key.String()),
			zap.Error(err),
		)
	}
}

// Held reports whether this process currently owns a lease for key.
func (m *Manager) Held(key manifest.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

// ClearAll removes every marker in the lease directory, including markers
// left behind by a crashed run. Leases are never auto-expired; this is
// the explicit operator recovery step. Returns the number of markers
// removed.
func (m *Manager) ClearAll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read lease directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove lease marker %s: %w", e.Name(), err)
		}
		removed++
	}

	for k := range m.held {
		delete(m.held, k)
	}
	return removed, nil
}

// markerPath hashes the key so marker names stay within filesystem
// limits regardless of object key length.
func (m *Manager) markerPath(key manifest.Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return filepath.Join(m.dir, hex.EncodeToString(sum[:16])+".lock")
}
