package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/core"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.False(t, cfg.API.StrictDecode)
		assert.False(t, cfg.Search.Strict)
		assert.Equal(t, 1.0, cfg.RateLimitMargin)
		assert.Empty(t, cfg.RateLimits)

		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.False(t, cfg.UsesStore())

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, DefaultStorePath(), cfg.Store.Path)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("SPACELINK_API_TOKEN", " tok ")
		t.Setenv("SPACELINK_API_STRICT_DECODE", "true")
		t.Setenv("SPACELINK_API_TIMEOUT", "5s")
		t.Setenv("SPACELINK_PORT", "9191")
		t.Setenv("SPACELINK_CACHE_ENABLED", "true")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, "tok", cfg.API.Token)
		assert.True(t, cfg.API.StrictDecode)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
		assert.Equal(t, 9191, cfg.Server.Port)
		assert.True(t, cfg.Cache.Enabled)
		assert.True(t, cfg.UsesStore())
	})

	t.Run("ShortTokenAlias", func(t *testing.T) {
		t.Setenv("SPACELINK_TOKEN", "alias-token")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, "alias-token", cfg.API.Token)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  token: file-token
  base_url: https://example.test/
search:
  strict: true
rate_limits:
  search:
    max_requests: 60
    window: 30s
  link_save:
    max_requests: 2
    window: 1m
rate_limit_margin: 0.5
`), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "file-token", cfg.API.Token)
		assert.Equal(t, "https://example.test", cfg.API.BaseURL)
		assert.True(t, cfg.Search.Strict)
		assert.Equal(t, 0.5, cfg.RateLimitMargin)

		limits := cfg.TrackerLimits()
		assert.Equal(t, 60, limits[core.RateCategorySearch].RequestsPerWindow)
		assert.Equal(t, 30*time.Second, limits[core.RateCategorySearch].WindowDuration)
		assert.Equal(t, 2, limits[core.RateCategoryLinkSave].RequestsPerWindow)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:             APIConfig{Token: "t", BaseURL: DefaultBaseURL, Timeout: time.Second},
			RateLimitMargin: 1,
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.API.Token = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "api.token")

	cfg = valid()
	cfg.API.BaseURL = "ftp://example.test"
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimitMargin = 1.5
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimits = map[string]RateLimitConfig{"bulk": {MaxRequests: 1, Window: time.Second}}
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimits = map[string]RateLimitConfig{"general": {MaxRequests: 0, Window: time.Second}}
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Cache = CacheConfig{Enabled: true}
	require.Error(t, cfg.Validate())

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := &Config{
		API:        APIConfig{Token: "secret"},
		Store:      StoreConfig{AuthToken: "db-secret"},
		RateLimits: map[string]RateLimitConfig{"search": {MaxRequests: 1}},
	}

	redacted := cfg.Redacted()
	require.Equal(t, "********", redacted.API.Token)
	require.Equal(t, "********", redacted.Store.AuthToken)
	require.Equal(t, "secret", cfg.API.Token)

	redacted.RateLimits["search"] = RateLimitConfig{MaxRequests: 9}
	require.Equal(t, 1, cfg.RateLimits["search"].MaxRequests)
}
