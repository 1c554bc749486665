package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "source/abc.ass", SourceKey("abc"))
	assert.Equal(t, "translated/abc.ass", ResultKey("abc"))
	assert.NotEqual(t, SourceKey("abc"), ResultKey("abc"))
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := SourceKey("job-1")
	require.NoError(t, s.Upload(ctx, key, strings.NewReader("[Events]\n"), 9, SubtitleContentType))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := ReadAll(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, "[Events]\n", string(data))

	require.NoError(t, s.Upload(ctx, key, strings.NewReader("v2"), 2, SubtitleContentType))
	data, err = ReadAll(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_MissingObject(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), ResultKey("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Upload(context.Background(), "../outside.ass", strings.NewReader("x"), 1, SubtitleContentType)
	assert.Error(t, err)
}

func TestLocalStorage_Sweep(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, SourceKey("old"), strings.NewReader("o"), 1, SubtitleContentType))
	require.NoError(t, s.Upload(ctx, SourceKey("new"), strings.NewReader("n"), 1, SubtitleContentType))
	require.NoError(t, s.Upload(ctx, ResultKey("old"), strings.NewReader("o"), 1, SubtitleContentType))
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "source", "old.ass"), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(root, "translated", "old.ass"), past, past))

	keepOld := func(key string) bool { return key == SourceKey("old") }
	removed, err := s.Sweep(ctx, SourcePrefix, time.Now().Add(-time.Hour), keepOld)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = s.Sweep(ctx, SourcePrefix, time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ok, _ := s.Exists(ctx, SourceKey("old"))
	assert.False(t, ok)
	ok, _ = s.Exists(ctx, SourceKey("new"))
	assert.True(t, ok)
	ok, _ = s.Exists(ctx, ResultKey("old"))
	assert.True(t, ok)
}
