package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOlderThan(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "source", "old.ass")
	newPath := filepath.Join(dir, "translated", "new.ass")
	require.NoError(t, os.MkdirAll(filepath.Dir(oldPath), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(newPath), 0o755))
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("y"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	found, err := FindOlderThan(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldPath}, found)

	found, err = FindOlderThan(filepath.Join(dir, "missing"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSafeJoin(t *testing.T) {
	p, err := SafeJoin("/data", "source/abc.ass")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "source", "abc.ass"), p)

	for _, key := range []string{"", "../etc/passwd", "/abs", "a/../../b"} {
		_, err := SafeJoin("/data", key)
		assert.Error(t, err, key)
	}
}
