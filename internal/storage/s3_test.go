package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a path-style, single-bucket object server
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
			}
		case http.MethodPut:
			f.buckets[bucket] = true
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		w.Header().Set("ETag", `"etag"`)
	case http.MethodGet:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write(body)
	case http.MethodHead:
		if _, ok := f.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestS3Storage_AgainstFakeServer(t *testing.T) {
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RESPONSE_CHECKSUM_VALIDATION", "when_required")

	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	s, err := NewS3Storage(ctx, &S3Config{
		Endpoint:  server.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "subs",
	})
	require.NoError(t, err)

	require.NoError(t, s.EnsureBucket(ctx))
	assert.True(t, fake.buckets["subs"])

	payload := []byte("Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Bonjour")
	require.NoError(t, s.Upload(ctx, ResultKey("j1"), bytes.NewReader(payload), int64(len(payload)), SubtitleContentType))
	assert.Equal(t, payload, fake.objects["subs/translated/j1.ass"])

	got, err := ReadAll(ctx, s, ResultKey("j1"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	ok, err := s.Exists(ctx, ResultKey("j1"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Download(ctx, ResultKey("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, ResultKey("j1")))
	ok, err = s.Exists(ctx, ResultKey("j1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/"))
	assert.Equal(t, "s3.example.com", normalizeEndpoint("https://s3.example.com/some/path"))
}
