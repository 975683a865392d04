package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Display periodically renders the tracker's state to the terminal.
type Display struct {
	tracker   *Tracker
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastLines int
}

// NewDisplay creates a new progress display
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the progress display
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop stops the display and prints the final summary block.
func (d *Display) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Display) displayLoop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.render(d.generate(d.tracker.GetStatus()))
		case <-d.stopCh:
			d.render(d.generateFinal(d.tracker.GetStatus()))
			fmt.Println()
			return
		}
	}
}

// render moves the cursor back over the previous block and redraws.
func (d *Display) render(lines []string) {
	if d.lastLines > 0 {
		fmt.Printf("\033[%dA", d.lastLines)
	}
	for _, line := range lines {
		fmt.Printf("\033[2K%s\n", line)
	}
	d.lastLines = len(lines)
}

func (d *Display) generate(status Status) []string {
	lines := []string{
		"",
		"S3Swarm transfer progress",
		strings.Repeat("=", 50),
		fmt.Sprintf("objects: %d/%d (%.1f%%)",
			status.ProcessedObjects, status.TotalObjects, d.tracker.ObjectPercent()),
		"  " + progressBar(d.tracker.ObjectPercent(), 40),
		fmt.Sprintf("bytes:   %s/%s (%.1f%%)",
			FormatBytes(status.ProcessedBytes), FormatBytes(status.TotalBytes), d.tracker.BytesPercent()),
		"  " + progressBar(d.tracker.BytesPercent(), 40),
		fmt.Sprintf("completed=%d failed=%d skipped=%d",
			status.CompletedObjects, status.FailedObjects, status.SkippedObjects),
		fmt.Sprintf("speed: %s (avg %s)  elapsed: %s  eta: %s",
			FormatSpeed(status.CurrentSpeed),
			FormatSpeed(status.AverageSpeed),
			FormatDuration(time.Since(status.StartTime).Round(time.Second)),
			FormatDuration(status.ETA)),
	}
	return lines
}

func (d *Display) generateFinal(status Status) []string {
	elapsed := time.Since(status.StartTime).Round(time.Second)
	return []string{
		"",
		"Run finished",
		strings.Repeat("=", 50),
		fmt.Sprintf("processed: %d objects, %s", status.ProcessedObjects, FormatBytes(status.ProcessedBytes)),
		fmt.Sprintf("completed=%d failed=%d skipped=%d", status.CompletedObjects, status.FailedObjects, status.SkippedObjects),
		fmt.Sprintf("total time: %s, average speed: %s", FormatDuration(elapsed), FormatSpeed(status.AverageSpeed)),
	}
}

func progressBar(percent float64, width int) string {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %.1f%%", bar, percent)
}

// IsTerminalSupported checks if stdout is a terminal.
func IsTerminalSupported() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
