package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/output"
)

var cacheClearExpired bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ClearCache(cmd.Context(), cacheClearExpired)
		if err != nil {
			return err
		}

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format == output.FormatJSON || format == output.FormatYAML {
			return writeDocument(cmd, output.Document{Value: map[string]any{
				"deleted":      deleted,
				"expired_only": cacheClearExpired,
			}})
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d cached response(s)\n", deleted)
		return err
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearExpired, "expired", false, "Only delete expired entries")

	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
