package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTask(bucket, object string, size int64) *Task {
	return &Task{
		Bucket:      bucket,
		Object:      object,
		Size:        size,
		Destination: filepath.Join("dest", bucket, object),
		Status:      StatusPending,
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	store.Add(newTask("data", "a/one.bin", 100))
	store.Add(newTask("data", "a/two.bin", 200))
	store.Add(newTask("other", "three.bin", 300))

	require.NoError(t, store.Update(Key{"data", "a/one.bin"}, StatusCompleted, 1, "", ""))
	require.NoError(t, store.Update(Key{"data", "a/two.bin"}, StatusFailed, 4, "transient", "connection reset"))

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.Len())

	one, ok := reloaded.Get(Key{"data", "a/one.bin"})
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, one.Status)
	assert.Equal(t, 1, one.Attempts)

	two, ok := reloaded.Get(Key{"data", "a/two.bin"})
	require.True(t, ok)
	assert.Equal(t, StatusFailed, two.Status)
	assert.Equal(t, 4, two.Attempts)
	assert.Equal(t, "transient", two.ErrorCategory)
	assert.Equal(t, "connection reset", two.LastError)

	three, ok := reloaded.Get(Key{"other", "three.bin"})
	require.True(t, ok)
	assert.Equal(t, StatusPending, three.Status)
	assert.Equal(t, 0, three.Attempts)
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestOpenCorruptManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, zap.NewNop())
	require.ErrorIs(t, err, ErrManifestCorrupt)
}

func TestOpenWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"tasks":[]}`), 0o644))

	_, err := Open(path, zap.NewNop())
	require.ErrorIs(t, err, ErrManifestCorrupt)
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "one.bin", 1))
	require.NoError(t, store.Persist())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.json", entries[0].Name())
}

func TestAddIsIdempotentPerKey(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)

	assert.True(t, store.Add(newTask("data", "one.bin", 1)))
	assert.False(t, store.Add(newTask("data", "one.bin", 999)))
	assert.Equal(t, 1, store.Len())

	got, _ := store.Get(Key{"data", "one.bin"})
	assert.Equal(t, int64(1), got.Size)
}

func TestQueryFiltersByStatusSet(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)

	store.Add(newTask("data", "a.bin", 1))
	store.Add(newTask("data", "b.bin", 1))
	store.Add(newTask("data", "c.bin", 1))
	require.NoError(t, store.Update(Key{"data", "b.bin"}, StatusCompleted, 1, "", ""))
	require.NoError(t, store.Update(Key{"data", "c.bin"}, StatusFailed, 2, "permanent", "access denied"))

	pending := store.Query(StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "a.bin", pending[0].Object)

	both := store.Query(StatusPending, StatusFailed)
	require.Len(t, both, 2)
	// Stable order: sorted by key.
	assert.Equal(t, "a.bin", both[0].Object)
	assert.Equal(t, "c.bin", both[1].Object)
}

func TestUpdateUnknownKey(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)

	err = store.Update(Key{"data", "ghost.bin"}, StatusCompleted, 1, "", "")
	require.Error(t, err)
}

func TestTerminalUpdatePersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "one.bin", 1))
	require.NoError(t, store.Update(Key{"data", "one.bin"}, StatusCompleted, 1, "", ""))

	// A fresh load must already see the terminal transition.
	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	got, ok := reloaded.Get(Key{"data", "one.bin"})
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestRequeueFailedResetsAttempts(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "one.bin", 1))
	require.NoError(t, store.Update(Key{"data", "one.bin"}, StatusFailed, 4, "transient", "timeout"))

	n, err := store.RequeueFailed(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.Get(Key{"data", "one.bin"})
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.LastError)
}

func TestRequeueFailedPreservesAttempts(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "one.bin", 1))
	require.NoError(t, store.Update(Key{"data", "one.bin"}, StatusFailed, 4, "transient", "timeout"))

	n, err := store.RequeueFailed(false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.Get(Key{"data", "one.bin"})
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 4, got.Attempts)
}

func TestRequeueInProgress(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "one.bin", 1))
	store.Add(newTask("data", "two.bin", 1))
	require.NoError(t, store.Update(Key{"data", "one.bin"}, StatusInProgress, 1, "", ""))

	n, err := store.RequeueInProgress()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.Get(Key{"data", "one.bin"})
	assert.Equal(t, StatusPending, got.Status)
}

func TestStats(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.json"), zap.NewNop())
	require.NoError(t, err)
	store.Add(newTask("data", "a.bin", 10))
	store.Add(newTask("data", "b.bin", 20))
	store.Add(newTask("data", "c.bin", 30))
	require.NoError(t, store.Update(Key{"data", "a.bin"}, StatusCompleted, 1, "", ""))
	require.NoError(t, store.Update(Key{"data", "b.bin"}, StatusFailed, 2, "permanent", "gone"))

	stats := store.Stats()
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Total())
	assert.Equal(t, int64(60), stats.TotalBytes)
	assert.Equal(t, int64(10), stats.CompletedBytes)
}
