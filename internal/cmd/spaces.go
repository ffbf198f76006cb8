package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/observability"
	"github.com/spacelink/spacelink/internal/output"
)

// withSession opens a session for the command, runs fn, and persists state.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, observability.CLILogger)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	return fn(ctx, s)
}

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "List the spaces visible to the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			list, err := s.client.ListSpaces(ctx)
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.Spaces(list))
		})
	},
}

var spaceInfoCmd = &cobra.Command{
	Use:   "space-info <space-id>",
	Short: "Show the structures and collections of a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			info, err := s.client.GetSpaceInfo(ctx, args[0])
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.SpaceInfo(args[0], info))
		})
	},
}

var (
	searchSpaces     []string
	searchMode       string
	searchStructures []string
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search content across one or more spaces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := core.ParseSearchMode(searchMode)
		if err != nil {
			return err
		}
		term := strings.Join(args, " ")

		return withSession(cmd, func(ctx context.Context, s *session) error {
			results, err := s.client.SearchContent(ctx, spaces.SearchParams{
				Query:        term,
				SpaceIDs:     searchSpaces,
				Mode:         mode,
				StructureIDs: searchStructures,
			})
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.SearchResults(term, results))
		})
	},
}

var (
	saveLinkSpace       string
	saveLinkTitle       string
	saveLinkDescription string
	saveLinkNotes       string
)

var saveLinkCmd = &cobra.Command{
	Use:   "save-link <url>",
	Short: "Save a weblink into a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := readTextArg(cmd.InOrStdin(), saveLinkNotes)
		if err != nil {
			return err
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			result, err := s.client.SaveWeblink(ctx, spaces.WeblinkParams{
				SpaceID:     saveLinkSpace,
				URL:         args[0],
				Title:       saveLinkTitle,
				Description: saveLinkDescription,
				Notes:       notes,
			})
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.WriteResult("save-link", result))
		})
	},
}

var (
	dailyNoteSpace       string
	dailyNoteNoTimestamp bool
)

var dailyNoteCmd = &cobra.Command{
	Use:   "daily-note <markdown|->",
	Short: "Append markdown to today's daily note",
	Long: `Append markdown to today's daily note in a space.

Pass "-" to read the markdown from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readTextArg(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		return withSession(cmd, func(ctx context.Context, s *session) error {
			result, err := s.client.SaveToDailyNote(ctx, spaces.DailyNoteParams{
				SpaceID:     dailyNoteSpace,
				Content:     text,
				NoTimestamp: dailyNoteNoTimestamp,
			})
			if err != nil {
				return err
			}
			return writeDocument(cmd, output.WriteResult("daily-note", result))
		})
	},
}

// readTextArg returns value, or stdin when value is "-".
func readTextArg(stdin io.Reader, value string) (string, error) {
	if strings.TrimSpace(value) != "-" {
		return value, nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchSpaces, "space", "s", nil, "Space ID to search (repeatable)")
	searchCmd.Flags().StringVar(&searchMode, "mode", string(core.DefaultSearchMode), "Search mode: fullText|title")
	searchCmd.Flags().StringSliceVar(&searchStructures, "structure", nil, "Only match objects of this structure ID (repeatable)")
	_ = searchCmd.MarkFlagRequired("space")

	saveLinkCmd.Flags().StringVarP(&saveLinkSpace, "space", "s", "", "Space ID to save into")
	saveLinkCmd.Flags().StringVar(&saveLinkTitle, "title", "", "Override the page title")
	saveLinkCmd.Flags().StringVar(&saveLinkDescription, "description", "", "Override the page description")
	saveLinkCmd.Flags().StringVar(&saveLinkNotes, "notes", "", "Markdown notes to attach (\"-\" reads stdin)")
	_ = saveLinkCmd.MarkFlagRequired("space")

	dailyNoteCmd.Flags().StringVarP(&dailyNoteSpace, "space", "s", "", "Space ID of the daily note")
	dailyNoteCmd.Flags().BoolVar(&dailyNoteNoTimestamp, "no-timestamp", false, "Do not prefix the entry with a timestamp")
	_ = dailyNoteCmd.MarkFlagRequired("space")

	rootCmd.AddCommand(spacesCmd)
	rootCmd.AddCommand(spaceInfoCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(saveLinkCmd)
	rootCmd.AddCommand(dailyNoteCmd)
}
