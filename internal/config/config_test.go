package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, int64(60000), cfg.RateLimit.WindowMs)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.PrimaryModel)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.FallbackModel)
	assert.Equal(t, "rest", cfg.LLM.Backend)
	assert.Equal(t, "quick", cfg.Chat.DefaultMode)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 5, cfg.Upload.MaxFiles)
	assert.Equal(t, 10000, cfg.Upload.MaxContentChars)
	assert.Equal(t, DefaultAllowedTypes, cfg.Upload.AllowedTypes)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	cfg, err := Load(writeConfig(t, "llm:\n  api_key: \"from-file\"\nrate_limit:\n  max_requests: 3\n  window_ms: 1000\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, int64(1000), cfg.RateLimit.WindowMs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Panics(t, func() { Init(filepath.Join(t.TempDir(), "missing.yaml")) })
}
