package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/store"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleSpaces() []core.Space {
	return []core.Space{
		{ID: "s1", Title: "Research", Icon: core.Icon{Type: "emoji", Val: "R"}},
		{ID: "s2", Title: "Work | Notes", Icon: core.Icon{Type: "emoji", Val: "W"}},
	}
}

func TestSpacesFormatters(t *testing.T) {
	doc := Spaces(sampleSpaces())

	table, err := Render(FormatTable, doc)
	require.NoError(t, err)
	require.Contains(t, table, "Research")
	require.Contains(t, strings.ToLower(table), "2 spaces")

	markdown, err := Render(FormatMarkdown, doc)
	require.NoError(t, err)
	require.Contains(t, markdown, "## Spaces")
	require.Contains(t, markdown, "| s1 | Research | R |")
	require.Contains(t, markdown, "Work \\| Notes")

	rendered, err := Render(FormatJSON, doc)
	require.NoError(t, err)
	var decoded struct {
		Spaces []core.Space `json:"spaces"`
	}
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded.Spaces, 2)
}

func TestYAMLUsesJSONFieldNames(t *testing.T) {
	results := []core.SearchResult{{ID: "o1", SpaceID: "s1", StructureID: "RootPage", Title: "Plan"}}

	rendered, err := Render(FormatYAML, SearchResults("plan", results))
	require.NoError(t, err)
	require.Contains(t, rendered, "structureId: RootPage")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Contains(t, decoded, "results")
}

func TestEmptyDocuments(t *testing.T) {
	table, err := Render(FormatTable, SearchResults("nothing", nil))
	require.NoError(t, err)
	require.Equal(t, "No matches.", table)

	rendered, err := Render(FormatJSON, Spaces(nil))
	require.NoError(t, err)
	require.JSONEq(t, `{"spaces":[]}`, rendered)
}

func TestSearchSnippetIsCompacted(t *testing.T) {
	long := strings.Repeat("word ", 40)
	results := []core.SearchResult{{
		ID:    "o1",
		Title: "Long",
		Highlights: []core.Highlight{
			{Snippets: []string{"  ", "first\n\nline  " + long}},
		},
	}}

	doc := SearchResults("word", results)
	require.Len(t, doc.Rows, 1)
	snippet := doc.Rows[0][4]
	require.True(t, strings.HasPrefix(snippet, "first line word"))
	require.True(t, strings.HasSuffix(snippet, "..."))
	require.Len(t, []rune(snippet), maxSnippetWidth)
	require.Equal(t, "1 match", doc.Footer)
}

func TestWriteResultDocument(t *testing.T) {
	doc := WriteResult("save_weblink", &core.WriteResult{Success: true, Synthetic: true})
	require.Equal(t, [][]string{{"ok", "inferred from status"}}, doc.Rows)

	rendered, err := Render(FormatJSON, doc)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"synthetic":true}`, rendered)
}

func TestRateWindowsDocument(t *testing.T) {
	reset := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := RateWindows([]engine.WindowSnapshot{
		{Category: core.RateCategoryGeneral, MaxRequests: 5, Window: time.Minute, RequestsUsed: 4, WindowResetAt: &reset},
		{Category: core.RateCategorySearch, MaxRequests: 120, Window: time.Minute},
	})

	require.Equal(t, []string{"general", "4", "5", "1", "1m0s", "2026-01-02T03:04:05Z"}, doc.Rows[0])
	require.Equal(t, "-", doc.Rows[1][5])

	rendered, err := Render(FormatJSON, doc)
	require.NoError(t, err)
	require.Contains(t, rendered, `"remaining": 1`)
}

func TestStoredRateWindowsMarksExpired(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := StoredRateWindows([]store.RateWindowEntry{
		{Category: core.RateCategoryLinkSave, Window: core.RateWindow{RequestsUsed: 3, WindowResetAt: now.Add(-time.Second)}, UpdatedAt: now.Add(-time.Minute)},
		{Category: core.RateCategorySearch, Window: core.RateWindow{RequestsUsed: 9, WindowResetAt: now.Add(time.Second)}, UpdatedAt: now},
	}, now)

	require.Equal(t, "expired", doc.Rows[0][4])
	require.Equal(t, "active", doc.Rows[1][4])
}
