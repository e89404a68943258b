package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, 10, config.Jobs.BatchSize)
	assert.Equal(t, 3, config.Jobs.MaxAttempts)
	assert.True(t, config.Scheduler.Enabled)
	assert.Equal(t, 30, config.DeadLetter.RetentionDays)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tldrsec.toml")
	content := `
[server]
port = 9090

[jobs]
max_attempts = 5
lock_ttl = "10m"

[chunking]
max_chunk_size = 2000
chunk_overlap = 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 5, config.Jobs.MaxAttempts)
	assert.Equal(t, 10*time.Minute, config.Jobs.LockTTLDuration())
	assert.Equal(t, 2000, config.Chunking.MaxChunkSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "30s", config.Jobs.RetryBackoffBase)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TLDRSEC_PORT", "7070")
	t.Setenv("TLDRSEC_API_KEY", "secret")
	t.Setenv("TLDRSEC_LOG_LEVEL", "debug")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "secret", config.Server.APIKey)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfig_ClaudeKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("TLDRSEC_CLAUDE_API_KEY", "")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "ant-key", config.Claude.APIKey)
}

func TestLoadConfig_InvalidDurationRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[jobs]\nlock_ttl = \"forever\"\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_ttl")
}

func TestLoadConfig_OverlapMustBeSmallerThanChunkSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	content := "[chunking]\nmax_chunk_size = 100\nchunk_overlap = 100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}
