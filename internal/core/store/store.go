package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/spacelink/spacelink/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryPath   = ":memory:"

	localBusyTimeoutMs = 5000
)

var errNotInitialized = errors.New("store is not initialized")

// target is a resolved store location. dsn is what the driver receives and
// may carry credentials; display never does.
type target struct {
	dsn     string
	display string
	local   bool
	memory  bool
}

// Store wraps the database connection backing the response cache and the
// persisted rate windows.
type Store struct {
	DB     *sql.DB
	driver string
	target target
}

// Open connects to the configured store. Local databases get a single
// connection, WAL journaling, and a busy timeout.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	t, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	if t.local && !t.memory {
		if err := ensureStoreDir(t.display); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverLibsql, t.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", t.display, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", t.display, err)
	}
	if t.local {
		if err := tuneLocal(ctx, db, t.memory); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: driver, target: t}, nil
}

// Describe returns a printable location for cfg with any credentials
// removed. It does not open the store.
func Describe(cfg config.StoreConfig) string {
	t, err := resolveTarget(cfg)
	if err != nil {
		return "unconfigured"
	}
	if t.local {
		return t.display
	}
	return t.display + " (remote)"
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return s.DB.PingContext(ctx)
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location returns the redacted store location.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.target.display
}

func (s *Store) ready(ctx context.Context) (context.Context, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, nil
}

// tuneLocal pins embedded databases to one connection so an in-memory
// database is shared between calls.
func tuneLocal(ctx context.Context, db *sql.DB, memory bool) error {
	db.SetMaxOpenConns(1)
	if memory {
		return nil
	}

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable wal journal: %w", err)
	}

	var timeout int
	err := db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", localBusyTimeoutMs)).Scan(&timeout)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

// resolveTarget prefers store.url (remote libsql) over store.path. Bare
// paths gain a file: prefix.
func resolveTarget(cfg config.StoreConfig) (target, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		return remoteTarget(raw, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return target{}, errors.New("store path or url is required")
	case path == memoryPath:
		return target{dsn: path, display: path, local: true, memory: true}, nil
	case strings.HasPrefix(path, "libsql:"):
		return remoteTarget(path, cfg.AuthToken)
	case strings.HasPrefix(path, "file:"):
		local, err := filePath(path)
		if err != nil {
			return target{}, err
		}
		return target{dsn: path, display: local, local: true}, nil
	default:
		clean := filepath.Clean(path)
		return target{dsn: "file:" + clean, display: clean, local: true}, nil
	}
}

func remoteTarget(raw, token string) (target, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("invalid store url: %w", err)
	}

	if strings.TrimSpace(token) != "" {
		query := parsed.Query()
		if query.Get("authToken") == "" {
			query.Set("authToken", token)
			parsed.RawQuery = query.Encode()
		}
	}
	dsn := parsed.String()

	parsed.RawQuery = ""
	parsed.User = nil
	return target{dsn: dsn, display: parsed.String()}, nil
}

func filePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}
	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
