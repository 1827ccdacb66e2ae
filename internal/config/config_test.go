package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/incant/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.True(t, cfg.Cache.Enabled)
	require.InDelta(t, 0.85, cfg.Cache.Threshold, 1e-9)
	require.Equal(t, 30*24*time.Hour, cfg.Cache.TTL)
	require.Equal(t, "sqlite", cfg.Cache.Backend)
	require.Equal(t, "warn", cfg.Log.Level)
	require.NotEmpty(t, cfg.DataDir)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Cache.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  enabled: true
  threshold: 0.9
  ttl: 72h
  backend: redis
redis:
  addr: cachehost:6379
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.InDelta(t, 0.9, cfg.Cache.Threshold, 1e-9)
	require.Equal(t, 72*time.Hour, cfg.Cache.TTL)
	require.Equal(t, "redis", cfg.Cache.Backend)
	require.Equal(t, "cachehost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  threshold: 0.9\n"), 0o600))

	t.Setenv("INCANT_CACHE_THRESHOLD", "0.95")
	t.Setenv("INCANT_CACHE_TTL", "24h")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.InDelta(t, 0.95, cfg.Cache.Threshold, 1e-9)
	require.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: ${INCANT_TEST_HOME}/incant\n"), 0o600))

	t.Setenv("INCANT_TEST_HOME", "/srv")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/incant", cfg.DataDir)
	require.Equal(t, filepath.Join("/srv/incant", "cache.db"), cfg.CacheDBPath())
}

func TestProvider_ReloadPicksUpFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  threshold: 0.8\n"), 0o600))

	provider, err := config.NewProvider(path)
	require.NoError(t, err)
	require.InDelta(t, 0.8, provider.CacheSettings().Threshold, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  threshold: 0.92\n"), 0o600))
	require.NoError(t, provider.Reload())
	require.InDelta(t, 0.92, provider.CacheSettings().Threshold, 1e-9)
}

func TestProvider_SwapTakesEffect(t *testing.T) {
	cfg := config.Default()
	provider := config.NewStaticProvider(cfg)

	settings := provider.CacheSettings()
	require.InDelta(t, 0.85, settings.Threshold, 1e-9)

	changed := config.Default()
	changed.Cache.Threshold = 0.7
	changed.Cache.Enabled = false
	provider.Swap(changed)

	settings = provider.CacheSettings()
	require.InDelta(t, 0.7, settings.Threshold, 1e-9)
	require.False(t, settings.Enabled)
}
