package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/nottranslate-api/pkg/file"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

// LocalStorage keeps objects as files under a root directory.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	for _, prefix := range []string{SourcePrefix, ResultPrefix} {
		if err := os.MkdirAll(filepath.Join(root, prefix), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}
	return &LocalStorage{root: root}, nil
}

// Upload writes to a temp file in the target directory and renames it into place,
// so readers never observe a partial object.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, _ int64, _ string) error {
	path, err := file.SafeJoin(s.root, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move object into place: %w", err)
	}
	return nil
}

func (s *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := file.SafeJoin(s.root, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := file.SafeJoin(s.root, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	path, err := file.SafeJoin(s.root, key)
	if err != nil {
		return false, err
	}
	return file.Exists(path)
}

// Sweep removes objects under prefix older than olderThan, except those keep
// reports true for, and returns how many went. keep may be nil.
func (s *LocalStorage) Sweep(_ context.Context, prefix string, olderThan time.Time, keep func(key string) bool) (int, error) {
	dir, err := file.SafeJoin(s.root, prefix)
	if err != nil {
		return 0, err
	}
	paths, err := file.FindOlderThan(dir, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}

	removed := 0
	for _, path := range paths {
		if keep != nil {
			rel, err := filepath.Rel(s.root, path)
			if err == nil && keep(filepath.ToSlash(rel)) {
				continue
			}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to remove expired object %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
