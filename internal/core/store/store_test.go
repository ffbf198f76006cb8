package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/config"
)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		dsn     string
		display string
		local   bool
	}{
		{
			name:    "remote url gains auth token",
			cfg:     config.StoreConfig{URL: "libsql://cache.turso.io", AuthToken: "secret"},
			dsn:     "libsql://cache.turso.io?authToken=secret",
			display: "libsql://cache.turso.io",
		},
		{
			name:    "existing query is kept",
			cfg:     config.StoreConfig{URL: "libsql://cache.turso.io?tls=1", AuthToken: "secret"},
			dsn:     "libsql://cache.turso.io?authToken=secret&tls=1",
			display: "libsql://cache.turso.io",
		},
		{
			name:    "url wins over path",
			cfg:     config.StoreConfig{URL: "libsql://cache.turso.io", Path: "/tmp/ignored.db"},
			dsn:     "libsql://cache.turso.io",
			display: "libsql://cache.turso.io",
		},
		{
			name:    "file prefix is passed through",
			cfg:     config.StoreConfig{Path: "file:./spacelink.db"},
			dsn:     "file:./spacelink.db",
			display: "./spacelink.db",
			local:   true,
		},
		{
			name:    "bare path gains file prefix",
			cfg:     config.StoreConfig{Path: "/var/lib/spacelink//cache.db"},
			dsn:     "file:/var/lib/spacelink/cache.db",
			display: "/var/lib/spacelink/cache.db",
			local:   true,
		},
		{
			name:    "memory",
			cfg:     config.StoreConfig{Path: ":memory:"},
			dsn:     ":memory:",
			display: ":memory:",
			local:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.dsn, got.dsn)
			assert.Equal(t, tt.display, got.display)
			assert.Equal(t, tt.local, got.local)
		})
	}
}

func TestResolveTargetRequiresLocation(t *testing.T) {
	_, err := resolveTarget(config.StoreConfig{})
	require.Error(t, err)
}

func TestDescribeNeverShowsCredentials(t *testing.T) {
	desc := Describe(config.StoreConfig{URL: "libsql://reader:pw@cache.turso.io?authToken=inline", AuthToken: "secret"})
	assert.Equal(t, "libsql://cache.turso.io (remote)", desc)
	assert.NotContains(t, desc, "secret")
	assert.NotContains(t, desc, "inline")
	assert.NotContains(t, desc, "pw")

	assert.Equal(t, "unconfigured", Describe(config.StoreConfig{}))
	assert.Equal(t, ":memory:", Describe(config.StoreConfig{Path: ":memory:"}))
}
