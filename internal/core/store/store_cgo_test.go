//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/core"
	"github.com/stretchr/testify/require"
)

func openMigrated(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.Equal(t, ":memory:", store.Location())
	require.NoError(t, store.Close())
}

func TestOpenLocalFileStoreIsTuned(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "spacelink.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.GreaterOrEqual(t, busyTimeout, 1000)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].version, version)

	require.NoError(t, store.Migrate(ctx))

	var applied int
	require.NoError(t, store.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	require.Equal(t, len(migrations), applied)
}

func TestOperationsOnNilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	_, err := store.GetCachedResponse(ctx, "spaces")
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, store.Migrate(ctx), errNotInitialized)
	require.ErrorIs(t, store.CheckHealth(ctx), errNotInitialized)
	require.NoError(t, store.Close())
}

func TestResponseCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	missing, err := store.GetCachedResponse(ctx, "spaces")
	require.NoError(t, err)
	require.Nil(t, missing)

	payload := json.RawMessage(`{"spaces":[{"id":"s1"}]}`)
	require.NoError(t, store.SetCachedResponse(ctx, "spaces", payload, time.Minute))

	cached, err := store.GetCachedResponse(ctx, "spaces")
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(cached))

	updated := json.RawMessage(`{"spaces":[]}`)
	require.NoError(t, store.SetCachedResponse(ctx, "spaces", updated, time.Minute))
	cached, err = store.GetCachedResponse(ctx, "spaces")
	require.NoError(t, err)
	require.JSONEq(t, string(updated), string(cached))
}

func TestResponseCacheExpiry(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.SetCachedResponse(ctx, "space-info:s1", json.RawMessage(`{}`), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	cached, err := store.GetCachedResponse(ctx, "space-info:s1")
	require.NoError(t, err)
	require.Nil(t, cached)

	removed, err := store.ClearCache(ctx, true)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestResponseCacheSkipsZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.SetCachedResponse(ctx, "spaces", json.RawMessage(`{}`), 0))
	cached, err := store.GetCachedResponse(ctx, "spaces")
	require.NoError(t, err)
	require.Nil(t, cached)
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.SetCachedResponse(ctx, "a", json.RawMessage(`{}`), time.Hour))
	require.NoError(t, store.SetCachedResponse(ctx, "b", json.RawMessage(`{}`), time.Hour))

	removed, err := store.ClearCache(ctx, true)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = store.ClearCache(ctx, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)
}

func TestRateWindowPersistence(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	window, err := store.GetRateWindow(ctx, core.RateCategorySearch)
	require.NoError(t, err)
	require.Nil(t, window)

	resetAt := time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)
	require.NoError(t, store.UpdateRateWindow(ctx, core.RateCategorySearch, &core.RateWindow{RequestsUsed: 3, WindowResetAt: resetAt}))
	require.NoError(t, store.UpdateRateWindow(ctx, core.RateCategoryGeneral, &core.RateWindow{RequestsUsed: 1, WindowResetAt: resetAt}))

	window, err = store.GetRateWindow(ctx, core.RateCategorySearch)
	require.NoError(t, err)
	require.Equal(t, 3, window.RequestsUsed)
	require.True(t, window.WindowResetAt.Equal(resetAt))

	entries, err := store.ListRateWindows(ctx, RateWindowQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, core.RateCategoryGeneral, entries[0].Category)

	_, err = store.ListRateWindows(ctx, RateWindowQuery{})
	require.Error(t, err)

	removed, err := store.ResetRateWindows(ctx, RateWindowQuery{Category: core.RateCategorySearch})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	entries, err = store.ListRateWindows(ctx, RateWindowQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
