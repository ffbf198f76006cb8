package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders documents as an ASCII table.
type TableFormatter struct{}

// Format renders doc as a table.
func (f *TableFormatter) Format(doc Document) (string, error) {
	if len(doc.Rows) == 0 {
		return emptyMessage(doc), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if doc.Title != "" {
		t.SetTitle(doc.Title)
	}
	t.AppendHeader(toRow(doc.Header))

	for _, row := range doc.Rows {
		t.AppendRow(toRow(row))
	}

	if doc.Footer != "" && len(doc.Header) > 0 {
		footer := make([]string, len(doc.Header))
		footer[len(footer)-1] = doc.Footer
		t.AppendFooter(toRow(footer))
	}

	return t.Render(), nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, value := range values {
		row[i] = value
	}
	return row
}

func emptyMessage(doc Document) string {
	if strings.TrimSpace(doc.Empty) != "" {
		return doc.Empty
	}
	return "No results."
}
