package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBucketsFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buckets.txt")
	writeBucketsFile(t, path, `
# production buckets
data-archive
  media-assets

# staging
staging-dumps
`)

	buckets, err := LoadBuckets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"data-archive", "media-assets", "staging-dumps"}, buckets)
}

func TestLoadBucketsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buckets.txt")
	writeBucketsFile(t, path, "\n# only comments\n\n")

	buckets, err := LoadBuckets(path)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestLoadBucketsMissingFile(t *testing.T) {
	_, err := LoadBuckets(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
