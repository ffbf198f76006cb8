package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/tools"
)

const maxSnippetWidth = 80

// Spaces renders the space listing.
func Spaces(spaces []core.Space) Document {
	doc := Document{
		Title:  "Spaces",
		Header: []string{"ID", "Title", "Icon"},
		Empty:  "No spaces are visible to this token.",
		Value:  map[string]any{"spaces": nonNil(spaces)},
	}
	for _, space := range spaces {
		doc.Rows = append(doc.Rows, []string{space.ID, space.Title, space.Icon.Val})
	}
	if len(spaces) > 0 {
		doc.Footer = plural(len(spaces), "space")
	}
	return doc
}

// SpaceInfo renders the structures of one space.
func SpaceInfo(spaceID string, info *core.SpaceInfo) Document {
	var structures []core.Structure
	if info != nil {
		structures = info.Structures
	}

	doc := Document{
		Title:  "Structures in " + spaceID,
		Header: []string{"ID", "Title", "Plural", "Properties", "Collections"},
		Empty:  "The space defines no structures.",
		Value:  map[string]any{"structures": nonNil(structures)},
	}
	for _, structure := range structures {
		collections := make([]string, 0, len(structure.Collections))
		for _, collection := range structure.Collections {
			collections = append(collections, collection.Title)
		}
		doc.Rows = append(doc.Rows, []string{
			structure.ID,
			structure.Title,
			structure.PluralName,
			strconv.Itoa(len(structure.PropertyDefinitions)),
			strings.Join(collections, ", "),
		})
	}
	return doc
}

// SearchResults renders matched objects with their first snippet.
func SearchResults(term string, results []core.SearchResult) Document {
	doc := Document{
		Title:  fmt.Sprintf("Results for %q", term),
		Header: []string{"ID", "Title", "Structure", "Space", "Snippet"},
		Empty:  "No matches.",
		Value:  map[string]any{"results": nonNil(results)},
	}
	for _, result := range results {
		doc.Rows = append(doc.Rows, []string{
			result.ID,
			result.Title,
			result.StructureID,
			result.SpaceID,
			firstSnippet(result),
		})
	}
	if len(results) > 0 {
		doc.Footer = plural(len(results), "match")
	}
	return doc
}

// WriteResult renders the outcome of a save operation.
func WriteResult(operation string, result *core.WriteResult) Document {
	if result == nil {
		result = &core.WriteResult{}
	}

	status := "failed"
	if result.Success {
		status = "ok"
	}
	source := "upstream response"
	if result.Synthetic {
		source = "inferred from status"
	}

	return Document{
		Title:  operation,
		Header: []string{"Status", "Source"},
		Rows:   [][]string{{status, source}},
		Value:  result,
	}
}

// RateWindows renders the live budget of a tracker.
func RateWindows(snapshots []engine.WindowSnapshot) Document {
	type row struct {
		engine.WindowSnapshot
		Remaining int `json:"remaining"`
	}

	values := make([]row, 0, len(snapshots))
	doc := Document{
		Title:  "Rate budgets",
		Header: []string{"Category", "Used", "Limit", "Remaining", "Window", "Resets"},
	}
	for _, snap := range snapshots {
		values = append(values, row{WindowSnapshot: snap, Remaining: snap.Remaining()})
		doc.Rows = append(doc.Rows, []string{
			string(snap.Category),
			strconv.Itoa(snap.RequestsUsed),
			strconv.Itoa(snap.MaxRequests),
			strconv.Itoa(snap.Remaining()),
			snap.Window.String(),
			formatOptionalTime(snap.WindowResetAt),
		})
	}
	doc.Value = map[string]any{"windows": values}
	return doc
}

// StoredRateWindows renders persisted windows.
func StoredRateWindows(entries []store.RateWindowEntry, now time.Time) Document {
	type row struct {
		Category      core.RateCategory `json:"category"`
		RequestsUsed  int               `json:"requests_used"`
		WindowResetAt time.Time         `json:"window_reset_at"`
		UpdatedAt     time.Time         `json:"updated_at"`
		Expired       bool              `json:"expired"`
	}

	values := make([]row, 0, len(entries))
	doc := Document{
		Title:  "Persisted rate windows",
		Header: []string{"Category", "Used", "Resets", "Updated", "State"},
		Empty:  "No persisted rate windows.",
	}
	for _, entry := range entries {
		expired := entry.Window.Expired(now)
		state := "active"
		if expired {
			state = "expired"
		}
		values = append(values, row{
			Category:      entry.Category,
			RequestsUsed:  entry.Window.RequestsUsed,
			WindowResetAt: entry.Window.WindowResetAt,
			UpdatedAt:     entry.UpdatedAt,
			Expired:       expired,
		})
		doc.Rows = append(doc.Rows, []string{
			string(entry.Category),
			strconv.Itoa(entry.Window.RequestsUsed),
			entry.Window.WindowResetAt.Format(time.RFC3339),
			entry.UpdatedAt.Format(time.RFC3339),
			state,
		})
	}
	doc.Value = map[string]any{"windows": values}
	return doc
}

// Tools renders the tool catalog.
func Tools(list []*tools.Tool) Document {
	doc := Document{
		Title:  "Tools",
		Header: []string{"Name", "Access", "Description"},
		Empty:  "No tools registered.",
		Value:  map[string]any{"tools": nonNil(list)},
	}
	for _, tool := range list {
		if tool == nil {
			continue
		}
		access := "write"
		if tool.ReadOnly {
			access = "read"
		}
		doc.Rows = append(doc.Rows, []string{tool.Name, access, tool.Description})
	}
	return doc
}

func firstSnippet(result core.SearchResult) string {
	for _, highlight := range result.Highlights {
		for _, snippet := range highlight.Snippets {
			if trimmed := strings.TrimSpace(snippet); trimmed != "" {
				return truncate(strings.Join(strings.Fields(trimmed), " "), maxSnippetWidth)
			}
		}
	}
	return ""
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Format(time.RFC3339)
}

func plural(count int, noun string) string {
	if count == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "ch") {
		return fmt.Sprintf("%d %ses", count, noun)
	}
	return fmt.Sprintf("%d %ss", count, noun)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
