package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/observability"
	"github.com/spacelink/spacelink/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:     "rate-limit",
	Aliases: []string{"ratelimit"},
	Short:   "Inspect and reset rate budget state",
}

var rateLimitListPersisted bool

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the configured budgets and their persisted usage",
	Long: `Show each category's budget after rate_limits overrides and the margin.

Usage is only known across invocations when cache.persist_rate_windows is on;
--persisted prints the raw stored windows instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tracker := engine.NewTracker(cfg.TrackerLimits(), engine.WithMargin(cfg.RateLimitMargin))

		var db *store.Store
		if cfg.Cache.PersistRateWindows || rateLimitListPersisted {
			db, err = openStore(ctx, cfg)
			if err != nil {
				if rateLimitListPersisted {
					return err
				}
				observability.CLILogger.Warn("Store unavailable, showing budgets only", zap.Error(err))
			} else {
				defer db.Close() // nolint:errcheck // best-effort cleanup
			}
		}

		if rateLimitListPersisted {
			entries, err := db.ListRateWindows(ctx, store.RateWindowQuery{All: true})
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.StoredRateWindows(entries, time.Now().UTC()))
		}

		if db != nil {
			for _, category := range core.RateCategories {
				window, err := db.GetRateWindow(ctx, category)
				if err != nil {
					return err
				}
				if window != nil {
					tracker.Restore(category, *window)
				}
			}
		}

		return writeDocument(cmd, output.RateWindows(tracker.Snapshot()))
	},
}

func init() {
	rateLimitListCmd.Flags().BoolVar(&rateLimitListPersisted, "persisted", false, "List raw persisted windows, including expired ones")

	rateLimitCmd.AddCommand(rateLimitListCmd, rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
