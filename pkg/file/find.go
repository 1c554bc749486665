package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FindOlderThan lists regular files under dir last modified before cutoff.
// A missing dir yields no files.
func FindOlderThan(dir string, cutoff time.Time) ([]string, error) {
	var oldFiles []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().Before(cutoff) {
			oldFiles = append(oldFiles, path)
		}
		return nil
	})

	return oldFiles, err
}

// Exists reports whether path exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
