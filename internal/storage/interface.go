package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download for a missing object.
var ErrNotFound = errors.New("object not found")

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Upload stores size bytes read from reader under key, replacing any previous object
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens the object; missing objects fail with ErrNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}

const (
	SourcePrefix = "source/"
	ResultPrefix = "translated/"

	SubtitleContentType = "text/x-ssa; charset=utf-8"
)

// SourceKey is where the uploaded document of a job lives
func SourceKey(id string) string {
	return SourcePrefix + id + ".ass"
}

// ResultKey is where the translated document of a job lives
func ResultKey(id string) string {
	return ResultPrefix + id + ".ass"
}

// ReadAll downloads key fully
func ReadAll(ctx context.Context, s ObjectStorage, key string) ([]byte, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
