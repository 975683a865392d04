package progress

import (
	"fmt"
	"sync"
	"time"
)

// Status is a point-in-time view of the run for display and summaries.
type Status struct {
	TotalObjects     int64
	ProcessedObjects int64
	CompletedObjects int64
	FailedObjects    int64
	SkippedObjects   int64
	TotalBytes       int64
	ProcessedBytes   int64
	StartTime        time.Time
	CurrentSpeed     float64 // bytes/second over the recent window
	AverageSpeed     float64 // bytes/second since start
	ETA              time.Duration
}

// Tracker accumulates run progress. Safe for concurrent use by workers.
type Tracker struct {
	mu           sync.RWMutex
	status       Status
	speedSamples []speedSample
	maxSamples   int
}

type speedSample struct {
	timestamp time.Time
	bytes     int64
}

// NewTracker creates a new progress tracker
func NewTracker() *Tracker {
	return &Tracker{
		status: Status{
			StartTime: time.Now(),
		},
		speedSamples: make([]speedSample, 0, 60),
		maxSamples:   60,
	}
}

// SetTotal sets the total number of objects and bytes eligible this run.
func (t *Tracker) SetTotal(objects, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.TotalObjects = objects
	t.status.TotalBytes = bytes
}

// AddCompleted records a finished transfer of the given size.
func (t *Tracker) AddCompleted(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.CompletedObjects++
	t.status.ProcessedObjects++
	t.status.ProcessedBytes += bytes
	t.updateSpeed(bytes)
}

// AddFailed records a task that exhausted its retries or hit a permanent error.
func (t *Tracker) AddFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.FailedObjects++
	t.status.ProcessedObjects++
}

// AddSkipped records a task passed over because another owner holds its lease.
func (t *Tracker) AddSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.SkippedObjects++
	t.status.ProcessedObjects++
}

// updateSpeed must be called with the lock held.
func (t *Tracker) updateSpeed(bytes int64) {
	now := time.Now()

	t.speedSamples = append(t.speedSamples, speedSample{timestamp: now, bytes: bytes})
	if len(t.speedSamples) > t.maxSamples {
		t.speedSamples = t.speedSamples[1:]
	}

	// Current speed over the last five seconds of samples.
	cutoff := now.Add(-5 * time.Second)
	var recentBytes int64
	var oldest time.Time
	for i := len(t.speedSamples) - 1; i >= 0; i-- {
		s := t.speedSamples[i]
		if s.timestamp.Before(cutoff) {
			break
		}
		recentBytes += s.bytes
		oldest = s.timestamp
	}
	if !oldest.IsZero() {
		if window := now.Sub(oldest); window > 0 {
			t.status.CurrentSpeed = float64(recentBytes) / window.Seconds()
		}
	}

	if elapsed := now.Sub(t.status.StartTime); elapsed > 0 {
		t.status.AverageSpeed = float64(t.status.ProcessedBytes) / elapsed.Seconds()
	}

	t.status.ETA = 0
	if remaining := t.status.TotalBytes - t.status.ProcessedBytes; remaining > 0 && t.status.AverageSpeed > 0 {
		t.status.ETA = time.Duration(float64(remaining)/t.status.AverageSpeed) * time.Second
	}
}

// GetStatus returns the current status (thread-safe)
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ObjectPercent returns the object-count progress percentage.
func (t *Tracker) ObjectPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.TotalObjects == 0 {
		return 0
	}
	return float64(t.status.ProcessedObjects) / float64(t.status.TotalObjects) * 100
}

// BytesPercent returns the byte-count progress percentage.
func (t *Tracker) BytesPercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status.TotalBytes == 0 {
		return 0
	}
	return float64(t.status.ProcessedBytes) / float64(t.status.TotalBytes) * 100
}

// FormatSpeed formats speed in human readable format
func FormatSpeed(bytesPerSecond float64) string {
	switch {
	case bytesPerSecond < 1024:
		return fmt.Sprintf("%.1f B/s", bytesPerSecond)
	case bytesPerSecond < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bytesPerSecond/1024)
	case bytesPerSecond < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB/s", bytesPerSecond/(1024*1024*1024))
	}
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "estimating"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
