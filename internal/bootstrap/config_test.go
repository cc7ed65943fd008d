package bootstrap

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/seclab-api/config"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Format: config.LogFormatJSON}, false)
	logger.Debug("hidden")
	logger.Info("login", "user", "alice")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "login", line["msg"])
	assert.Equal(t, "alice", line["user"])

	buf.Reset()
	logger = newLogger(&buf, config.LogConfig{Format: config.LogFormatText, Level: "warn"}, true)
	logger.Info("hidden")
	logger.Warn("lockout", "user", "bob")
	assert.Contains(t, buf.String(), "level=WARN msg=lockout user=bob")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORE=postgres\nLOG_FORMAT=text\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("SESSION_STORE", "redis")
	// godotenv writes straight to the process environment.
	t.Cleanup(func() {
		_ = os.Unsetenv("STORE")
		_ = os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, config.SessionStoreRedis, cfg.SessionStore)
	assert.Equal(t, config.LogFormatText, cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "loud")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "LOG_LEVEL")
}
