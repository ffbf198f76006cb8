package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/output"
	"github.com/spacelink/spacelink/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call the agent tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Listing needs no credentials; the operations are never called.
		registry, err := tools.New(&spaces.Client{})
		if err != nil {
			return err
		}
		return writeDocument(cmd, output.Tools(registry.List()))
	},
}

var toolsDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Print a tool's description and input schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := tools.New(&spaces.Client{})
		if err != nil {
			return err
		}
		tool, err := registry.Get(args[0])
		if err != nil {
			return err
		}
		return writeValue(cmd, tool)
	},
}

var (
	toolsCallArgs     string
	toolsCallArgsFile string
)

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Call a tool with JSON arguments",
	Example: `  spacelink tools call search_content --args '{"searchTerm":"roadmap","spaceIds":["..."]}'
  echo '{"spaceId":"...","mdText":"hello"}' | spacelink tools call save_to_daily_note --args-file -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := loadToolArgs(cmd)
		if err != nil {
			return err
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			registry, err := s.registry()
			if err != nil {
				return err
			}
			result, err := registry.Execute(ctx, args[0], raw)
			if err != nil {
				return err
			}
			return writeValue(cmd, map[string]any{"tool": args[0], "result": result})
		})
	},
}

func loadToolArgs(cmd *cobra.Command) (json.RawMessage, error) {
	inline := strings.TrimSpace(toolsCallArgs)
	file := strings.TrimSpace(toolsCallArgsFile)
	if inline != "" && file != "" {
		return nil, fmt.Errorf("--args and --args-file are mutually exclusive")
	}

	var data []byte
	switch {
	case file == "-":
		text, err := readTextArg(cmd.InOrStdin(), "-")
		if err != nil {
			return nil, err
		}
		data = []byte(text)
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read args file: %w", err)
		}
		data = content
	default:
		data = []byte(inline)
	}

	if len(strings.TrimSpace(string(data))) > 0 && !json.Valid(data) {
		return nil, fmt.Errorf("%w: arguments are not valid JSON", tools.ErrInvalidArguments)
	}
	return json.RawMessage(data), nil
}

// writeValue prints a free-form value. Tabular formats fall back to JSON.
func writeValue(cmd *cobra.Command, value any) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	if format == output.FormatTable || format == output.FormatMarkdown {
		if err := cmd.Flags().Set("output-format", string(output.FormatJSON)); err != nil {
			return err
		}
	}
	return writeDocument(cmd, output.Document{Value: value})
}

func init() {
	toolsCallCmd.Flags().StringVar(&toolsCallArgs, "args", "", "Tool arguments as a JSON object")
	toolsCallCmd.Flags().StringVar(&toolsCallArgsFile, "args-file", "", "Read tool arguments from a file (\"-\" reads stdin)")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsDescribeCmd)
	toolsCmd.AddCommand(toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}
