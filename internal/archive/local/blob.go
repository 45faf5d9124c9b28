// Package local provides a filesystem-backed blob store for page archives.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore writes archived objects under a base directory.
type BlobStore struct {
	baseDir string
}

// New constructs a BlobStore rooted at baseDir, creating it if needed.
func New(baseDir string) (*BlobStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("archive.base_dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// PutObject writes data under the base directory and returns a file:// locator.
// Paths are cleaned and kept inside the base directory.
func (s *BlobStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.baseDir, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("object path %q escapes base dir", path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return "file://" + full, nil
}
