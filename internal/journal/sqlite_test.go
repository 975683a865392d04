package journal

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndReadBack(t *testing.T) {
	j := openTestJournal(t)

	entries := []Entry{
		{Bucket: "data", Object: "a.bin", Attempt: 1, Outcome: OutcomeRetried,
			ErrorClass: "transient", Message: "connection reset", Duration: 120 * time.Millisecond},
		{Bucket: "data", Object: "a.bin", Attempt: 2, Outcome: OutcomeSucceeded,
			Duration: 340 * time.Millisecond},
		{Bucket: "data", Object: "b.bin", Attempt: 1, Outcome: OutcomeFailed,
			ErrorClass: "permanent", Message: "access denied", Duration: 15 * time.Millisecond},
	}
	for _, e := range entries {
		require.NoError(t, j.Record(e))
	}

	got, err := j.Attempts("data", "a.bin")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Attempt)
	assert.Equal(t, OutcomeRetried, got[0].Outcome)
	assert.Equal(t, "transient", got[0].ErrorClass)
	assert.Equal(t, "connection reset", got[0].Message)
	assert.Equal(t, 120*time.Millisecond, got[0].Duration)
	assert.False(t, got[0].At.IsZero())

	assert.Equal(t, 2, got[1].Attempt)
	assert.Equal(t, OutcomeSucceeded, got[1].Outcome)

	other, err := j.Attempts("data", "b.bin")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, OutcomeFailed, other[0].Outcome)
}

func TestAttemptsUnknownKeyIsEmpty(t *testing.T) {
	j := openTestJournal(t)

	got, err := j.Attempts("data", "missing.bin")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentRecords(t *testing.T) {
	j := openTestJournal(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			err := j.Record(Entry{
				Bucket:  "data",
				Object:  "contended.bin",
				Attempt: attempt,
				Outcome: OutcomeRetried,
			})
			assert.NoError(t, err)
		}(i + 1)
	}
	wg.Wait()

	got, err := j.Attempts("data", "contended.bin")
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestDiscardWriter(t *testing.T) {
	var w Writer = Discard{}
	assert.NoError(t, w.Record(Entry{Bucket: "data", Object: "a.bin"}))
	assert.NoError(t, w.Close())
}
