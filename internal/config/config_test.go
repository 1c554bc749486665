package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "/app/data", cfg.System.DataDir)
	assert.Equal(t, filepath.Join("/app/data", "nottranslate.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/app/data", "files"), cfg.StorageDir())
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "opusmt", cfg.Translate.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Translate.LineDelay)
	assert.Equal(t, 60*time.Second, cfg.Translate.PollInterval)
	assert.Equal(t, time.Hour, cfg.Cleanup.Retention)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/nt-data")
	t.Setenv("TRANSLATE_LINE_DELAY", "0s")
	t.Setenv("FILE_RETENTION", "2h")
	t.Setenv("API_KEYS", "alpha, beta,,gamma")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/nt-data", "nottranslate.db"), cfg.DBPath())
	assert.Equal(t, time.Duration(0), cfg.Translate.LineDelay)
	assert.Equal(t, 2*time.Hour, cfg.Cleanup.Retention)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Auth.APIKeys)
}

func TestNewFromEnv_WithDataDirOption(t *testing.T) {
	cfg, err := NewFromEnv(WithDataDir("/srv/nt"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/nt", cfg.System.DataDir)
}

func TestNewFromEnv_LLMBackendRequiresKey(t *testing.T) {
	t.Setenv("TRANSLATOR_BACKEND", "llm")
	t.Setenv("LLM_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)

	t.Setenv("LLM_API_KEY", "test-key")
	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
}

func TestNewFromEnv_S3RequiresBucket(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_InvalidCleanupCron(t *testing.T) {
	t.Setenv("CLEANUP_CRON", "not a cron")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_ReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("http:\n  addr: \":9100\"\ntranslate:\n  product_name: SubBot\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "SubBot", cfg.Translate.ProductName)
}
