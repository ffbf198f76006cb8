package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/observability"
)

// openStore opens the configured store and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is not loaded", errConfig)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store %s: %w", db.Location(), err)
	}

	if logger := observability.CLILogger; logger != nil {
		version, _ := db.SchemaVersion(ctx)
		logger.Debug("Store ready",
			zap.String("location", db.Location()),
			zap.Int("schema_version", version))
	}
	return db, nil
}
