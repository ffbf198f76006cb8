package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/output"
)

var (
	rateLimitResetAll      bool
	rateLimitResetCategory string
	rateLimitResetYes      bool
	rateLimitResetDryRun   bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted rate windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		query := store.RateWindowQuery{All: rateLimitResetAll}
		if value := strings.TrimSpace(rateLimitResetCategory); value != "" {
			category, err := core.ParseRateCategory(value)
			if err != nil {
				return err
			}
			query.Category = category
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.ListRateWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		if rateLimitResetDryRun {
			return writeRateLimitResetResult(cmd, format, len(matched), 0, true)
		}

		deleted, err := db.ResetRateWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeRateLimitResetResult(cmd, format, len(matched), deleted, false)
	},
}

func writeRateLimitResetResult(cmd *cobra.Command, format output.Format, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON || format == output.FormatYAML {
		return writeDocument(cmd, output.Document{Value: result})
	}

	return writeRateLimitResetLine(cmd.OutOrStdout(), dryRun, matched, deleted)
}

func writeRateLimitResetLine(w io.Writer, dryRun bool, matched int, deleted int64) error {
	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d rate window(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d rate window(s)\n", deleted, matched)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every category")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetCategory, "category", "", "Reset one category: general|search|link-save")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
}
