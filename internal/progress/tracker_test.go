package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker()
	tr.SetTotal(4, 1000)

	tr.AddCompleted(600)
	tr.AddCompleted(400)
	tr.AddFailed()
	tr.AddSkipped()

	st := tr.GetStatus()
	assert.Equal(t, int64(4), st.TotalObjects)
	assert.Equal(t, int64(4), st.ProcessedObjects)
	assert.Equal(t, int64(2), st.CompletedObjects)
	assert.Equal(t, int64(1), st.FailedObjects)
	assert.Equal(t, int64(1), st.SkippedObjects)
	assert.Equal(t, int64(1000), st.ProcessedBytes)

	assert.InDelta(t, 100.0, tr.ObjectPercent(), 0.001)
	assert.InDelta(t, 100.0, tr.BytesPercent(), 0.001)
}

func TestTrackerPercentWithZeroTotals(t *testing.T) {
	tr := NewTracker()
	assert.Zero(t, tr.ObjectPercent())
	assert.Zero(t, tr.BytesPercent())
}

func TestTrackerPartialProgress(t *testing.T) {
	tr := NewTracker()
	tr.SetTotal(10, 2000)
	tr.AddCompleted(500)

	assert.InDelta(t, 10.0, tr.ObjectPercent(), 0.001)
	assert.InDelta(t, 25.0, tr.BytesPercent(), 0.001)

	st := tr.GetStatus()
	assert.Greater(t, st.AverageSpeed, 0.0)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr := NewTracker()
	tr.SetTotal(64, 64)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddCompleted(1)
		}()
	}
	wg.Wait()

	st := tr.GetStatus()
	assert.Equal(t, int64(64), st.CompletedObjects)
	assert.Equal(t, int64(64), st.ProcessedBytes)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "100.0 B/s", FormatSpeed(100))
	assert.Equal(t, "1.0 KB/s", FormatSpeed(1024))
	assert.Equal(t, "3.0 MB/s", FormatSpeed(3*1024*1024))
	assert.Equal(t, "1.0 GB/s", FormatSpeed(1024*1024*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "estimating", FormatDuration(0))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m5s", FormatDuration(time.Hour+65*time.Second))
}
