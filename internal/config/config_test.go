package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "https://api.polygon.io", cfg.MarketData.BaseURL)
	require.Equal(t, 5, cfg.MarketData.AttemptTimeoutSec)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"marketdata": {"api_key": "k123", "quote_cache_ttl_sec": 30},
		"log": {"level": "debug"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "k123", cfg.MarketData.APIKey)
	require.Equal(t, 30, cfg.MarketData.QuoteCacheTTLSec)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("MARKETDATA_API_KEY", "env-key")
	t.Setenv("MARKETDATA_ATTEMPT_TIMEOUT_SEC", "9")
	t.Setenv("QUOTE_CACHE_TTL_SEC", "0")
	t.Setenv("AUTH_SECRET", "hush")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "env-key", cfg.MarketData.APIKey)
	require.Equal(t, 9, cfg.MarketData.AttemptTimeoutSec)
	require.Zero(t, cfg.MarketData.QuoteCacheTTLSec, "cache can be disabled via env")
	require.Equal(t, "hush", cfg.Auth.Secret)
	require.Equal(t, "warn", cfg.Log.Level)
}
