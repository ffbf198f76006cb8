package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders documents as a markdown table.
type MarkdownFormatter struct{}

// Format renders doc as Markdown.
func (f *MarkdownFormatter) Format(doc Document) (string, error) {
	var sb strings.Builder
	if doc.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", doc.Title))
	}

	if len(doc.Rows) == 0 {
		sb.WriteString(emptyMessage(doc))
		sb.WriteString("\n")
		return sb.String(), nil
	}

	sb.WriteString(markdownRow(doc.Header))
	separators := make([]string, len(doc.Header))
	for i, cell := range doc.Header {
		separators[i] = strings.Repeat("-", max(len(cell), 3))
	}
	sb.WriteString("|" + strings.Join(separators, "|") + "|\n")

	for _, row := range doc.Rows {
		sb.WriteString(markdownRow(row))
	}

	if doc.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", doc.Footer))
	}

	return sb.String(), nil
}

func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = escapeMarkdownCell(cell)
	}
	return "| " + strings.Join(escaped, " | ") + " |\n"
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
