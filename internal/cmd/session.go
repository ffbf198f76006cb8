package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/tools"
)

// errConfig marks failures that should exit with a config exit code.
var errConfig = errors.New("configuration error")

// session is everything one invocation needs to talk to the upstream.
type session struct {
	cfg     *config.Config
	tracker *engine.Tracker
	gateway *gateway.Gateway
	client  *spaces.Client
	store   *store.Store
	logger  *logging.Logger

	closeOnce sync.Once
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}

// openSession loads config and wires tracker, gateway, client, and the
// optional store. Persisted rate windows are restored before any dispatch.
func openSession(ctx context.Context, logger *logging.Logger) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	tracker := engine.NewTracker(cfg.TrackerLimits(), engine.WithMargin(cfg.RateLimitMargin))

	gw, err := gateway.New(gateway.Config{
		BaseURL:      cfg.API.BaseURL,
		Token:        cfg.API.Token,
		Timeout:      cfg.API.Timeout,
		StrictDecode: cfg.API.StrictDecode,
		UserAgent:    config.AppName + "/" + versionInfo.Version,
	}, gateway.WithTracker(tracker), gateway.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}

	s := &session{
		cfg:     cfg,
		tracker: tracker,
		gateway: gw,
		client: &spaces.Client{
			Gateway:      gw,
			StrictSearch: cfg.Search.Strict,
			Logger:       logger,
		},
		logger: logger,
	}

	if cfg.UsesStore() {
		db, err := openStore(ctx, cfg)
		if err != nil {
			// The store only accelerates; the upstream is still reachable.
			if logger != nil {
				logger.Warn("Store unavailable, continuing without cache", zap.Error(err))
			}
			return s, nil
		}
		s.store = db

		if cfg.Cache.Enabled {
			s.client.Cache = spaces.NewScopedCache(db, spaces.CacheScope(cfg.API.BaseURL, cfg.API.Token))
			s.client.CacheTTL = cfg.Cache.TTL
		}
		if cfg.Cache.PersistRateWindows {
			s.restoreWindows(ctx)
		}
	}

	return s, nil
}

func (s *session) registry() (*tools.Registry, error) {
	return tools.New(s.client)
}

func (s *session) restoreWindows(ctx context.Context) {
	for _, category := range core.RateCategories {
		window, err := s.store.GetRateWindow(ctx, category)
		if err != nil {
			s.warn("Failed to read persisted rate window", zap.String("category", string(category)), zap.Error(err))
			continue
		}
		if window != nil && s.tracker.Restore(category, *window) {
			s.debug("Restored rate window",
				zap.String("category", string(category)),
				zap.Int("requests_used", window.RequestsUsed))
		}
	}
}

func (s *session) persistWindows(ctx context.Context) {
	for _, snap := range s.tracker.Snapshot() {
		if snap.WindowResetAt == nil || snap.RequestsUsed == 0 {
			continue
		}
		window := core.RateWindow{RequestsUsed: snap.RequestsUsed, WindowResetAt: *snap.WindowResetAt}
		if err := s.store.UpdateRateWindow(ctx, snap.Category, &window); err != nil {
			s.warn("Failed to persist rate window", zap.String("category", string(snap.Category)), zap.Error(err))
		}
	}
}

// Close saves live windows when persistence is on and releases the store.
// Later calls are no-ops.
func (s *session) Close(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}
	s.closeOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		if s.cfg.Cache.PersistRateWindows {
			// Saving must not be skipped because the command's context ended.
			s.persistWindows(context.WithoutCancel(ctx))
		}
		if err := s.store.Close(); err != nil {
			s.warn("Failed to close store", zap.Error(err))
		}
	})
}

func (s *session) warn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *session) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}
