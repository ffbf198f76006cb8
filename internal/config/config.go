package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
)

// Config represents the complete application configuration. Values are
// layered by viper (defaults, config file, environment, flags) and decoded
// with mapstructure.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Health  HealthConfig  `mapstructure:"health" yaml:"health"`

	RateLimits      map[string]RateLimitConfig `mapstructure:"rate_limits" yaml:"rate_limits"`
	RateLimitMargin float64                    `mapstructure:"rate_limit_margin" yaml:"rate_limit_margin"`
}

// APIConfig describes the upstream knowledge-base API.
type APIConfig struct {
	Token   string        `mapstructure:"token" yaml:"token"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// StrictDecode turns malformed JSON on a 2xx into a decode failure
	// instead of a synthetic success.
	StrictDecode bool `mapstructure:"strict_decode" yaml:"strict_decode"`
}

// SearchConfig controls how searches treat bodiless responses.
type SearchConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// RateLimitConfig overrides the budget of one category.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

// CacheConfig controls the read-through response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// PersistRateWindows shares budget windows between CLI invocations
	// through the store.
	PersistRateWindows bool `mapstructure:"persist_rate_windows" yaml:"persist_rate_windows"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Profile selects the server log format
	// Valid values: simple, structured
	Profile string `mapstructure:"profile" yaml:"profile"`

	// Environment is attached to every server log record
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated Prometheus endpoint port.
	Port int `mapstructure:"port" yaml:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// UsesStore reports whether any feature needs the libsql store.
func (c *Config) UsesStore() bool {
	return c != nil && (c.Cache.Enabled || c.Cache.PersistRateWindows)
}

// Validate checks the settings needed to talk to the upstream API.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is not loaded")
	}

	var problems []string

	if strings.TrimSpace(c.API.Token) == "" {
		problems = append(problems, "api.token is required (set "+EnvPrefix+"_API_TOKEN)")
	}

	if raw := strings.TrimSpace(c.API.BaseURL); raw == "" {
		problems = append(problems, "api.base_url is required")
	} else if parsed, err := url.Parse(raw); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("api.base_url %q must be an absolute http(s) URL", raw))
	}

	if c.API.Timeout < 0 {
		problems = append(problems, "api.timeout must not be negative")
	}

	if c.RateLimitMargin <= 0 || c.RateLimitMargin > 1 {
		problems = append(problems, fmt.Sprintf("rate_limit_margin %.2f must be in (0,1]", c.RateLimitMargin))
	}

	for key, limit := range c.RateLimits {
		if _, err := core.ParseRateCategory(key); err != nil {
			problems = append(problems, fmt.Sprintf("rate_limits.%s: %v", key, err))
			continue
		}
		if limit.MaxRequests <= 0 || limit.Window <= 0 {
			problems = append(problems, fmt.Sprintf("rate_limits.%s needs positive max_requests and window", key))
		}
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		problems = append(problems, "cache.ttl must be positive when the cache is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TrackerLimits converts the rate_limits overrides into tracker limits.
// Unknown categories are skipped; Validate reports them.
func (c *Config) TrackerLimits() map[core.RateCategory]engine.RateLimit {
	if c == nil {
		return map[core.RateCategory]engine.RateLimit{}
	}
	limits := make(map[core.RateCategory]engine.RateLimit, len(c.RateLimits))
	for key, limit := range c.RateLimits {
		category, err := core.ParseRateCategory(key)
		if err != nil {
			continue
		}
		limits[category] = engine.RateLimit{
			RequestsPerWindow: limit.MaxRequests,
			WindowDuration:    limit.Window,
		}
	}
	return limits
}

// Redacted returns a copy that is safe to print.
func (c *Config) Redacted() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.API.Token = redact(c.API.Token)
	out.Store.AuthToken = redact(c.Store.AuthToken)
	if c.RateLimits != nil {
		out.RateLimits = make(map[string]RateLimitConfig, len(c.RateLimits))
		for key, value := range c.RateLimits {
			out.RateLimits[key] = value
		}
	}
	return &out
}

func redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "********"
}
