// Package localfs serves blobs from a local directory, for offline
// checkpoints and development.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store maps blob names like "images/123.png" to files under a root directory.
type Store struct {
	root string
}

// New returns a store rooted at dir. The directory must exist.
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("blob directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob directory %s is not a directory", dir)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(name string) (string, error) {
	p := filepath.FromSlash(name)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.root, p), nil
}

// Get returns the blob contents, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// Put writes the blob, creating parent directories. contentType is ignored.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil { //nolint:gosec // reference photos are not secret
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	return nil
}

var _ database.BlobWriter = (*Store)(nil)
