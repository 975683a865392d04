package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadBuckets reads the bucket list: one name per line, blank lines and
// lines starting with # ignored.
func LoadBuckets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buckets file %s: %w", path, err)
	}
	defer f.Close()

	var buckets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		buckets = append(buckets, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read buckets file %s: %w", path, err)
	}

	return buckets, nil
}
