package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := 5 * time.Second
	max := 30 * time.Second

	assert.Equal(t, 5*time.Second, Backoff(1, base, max))
	assert.Equal(t, 10*time.Second, Backoff(2, base, max))
	assert.Equal(t, 20*time.Second, Backoff(3, base, max))
	assert.Equal(t, 30*time.Second, Backoff(4, base, max))
	assert.Equal(t, 30*time.Second, Backoff(5, base, max))
	assert.Equal(t, 30*time.Second, Backoff(12, base, max))
}

func TestBackoffClampsBadInputs(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(0, 5*time.Second, 30*time.Second))
	assert.Equal(t, 5*time.Second, Backoff(-3, 5*time.Second, 30*time.Second))
	// Base above max still respects the cap.
	assert.Equal(t, 30*time.Second, Backoff(1, time.Minute, 30*time.Second))
}

func TestTaskKey(t *testing.T) {
	task := Task{Bucket: "data", Object: "a/one.bin"}
	assert.Equal(t, manifest.Key{Bucket: "data", Object: "a/one.bin"}, task.Key())
}
