package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/output"
	"github.com/spacelink/spacelink/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information.

--extended adds the Go runtime, gofulmen, and Crucible versions. With
--output-format json or yaml the extended report is emitted as a document,
the same shape served on /version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		handlers.SetAppName(config.AppName)
		report := handlers.CurrentVersion()

		if format == output.FormatJSON || format == output.FormatYAML {
			return writeDocument(cmd, output.Document{Value: report})
		}
		if !extended {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.AppName, report.App.Version)
			return err
		}
		return writeDocument(cmd, versionDocument(report))
	},
}

func versionDocument(report handlers.VersionResponse) output.Document {
	return output.Document{
		Title:  report.App.Name + " " + report.App.Version,
		Header: []string{"Component", "Value"},
		Rows: [][]string{
			{"Commit", report.App.Commit},
			{"Built", report.App.BuildDate},
			{"Go", report.App.GoVersion},
			{"Platform", report.Runtime.Platform},
			{"CPUs", strconv.Itoa(report.Runtime.NumCPU)},
			{"Gofulmen", report.Dependencies.Gofulmen},
			{"Crucible", report.Dependencies.Crucible},
		},
		Value: report,
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
