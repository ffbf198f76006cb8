package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/spaces"
	errwrap "github.com/spacelink/spacelink/internal/errors"
	"github.com/spacelink/spacelink/internal/observability"
	"github.com/spacelink/spacelink/internal/tools"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run an offline self-check",
	Long: `Verify that the binary can start: build metadata, configuration, rate
budgets, and the tool registry. No upstream calls are made and no budget is
spent; use 'doctor --ping' to test the token.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("version information missing"))
			return
		}
		log.Info("✅ Version " + versionInfo.Version)

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration failed to load", err)
			return
		}
		log.Info("✅ Configuration loaded")

		// A missing token is reported but does not fail: serve answers probes
		// without one.
		if err := cfg.Validate(); err != nil {
			log.Warn("⚠️  Configuration incomplete", zap.Error(err))
		} else {
			log.Info("✅ Credentials configured")
		}

		for key, limit := range cfg.RateLimits {
			if _, err := core.ParseRateCategory(key); err != nil {
				log.Warn("⚠️  Ignoring rate limit for unknown category", zap.String("category", key))
				continue
			}
			if limit.MaxRequests < 1 || limit.Window <= 0 {
				ExitWithCode(log, foundry.ExitConfigInvalid, "Rate budget unusable",
					errwrap.NewConfigInvalidError(fmt.Sprintf("rate_limits.%s must allow at least one request per window", key)))
				return
			}
		}
		tracker := engine.NewTracker(cfg.TrackerLimits(), engine.WithMargin(cfg.RateLimitMargin))
		for _, snap := range tracker.Snapshot() {
			log.Info(fmt.Sprintf("✅ %s budget: %d per %s", snap.Category, snap.MaxRequests, snap.Window))
		}

		registry, err := tools.New(&spaces.Client{})
		if err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Tool registry failed to build", err)
			return
		}
		log.Info("✅ Tool registry ready", zap.Int("tools", len(registry.List())))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
