package core

import (
	"fmt"
	"strings"
)

// Icon describes how a space is rendered upstream.
type Icon struct {
	Type     string `json:"type"`
	Val      string `json:"val"`
	Color    string `json:"color,omitempty"`
	ColorHex string `json:"colorHex,omitempty"`
}

// Space is a top-level workspace in the knowledge base.
type Space struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  Icon   `json:"icon"`
}

// PropertyDefinition describes one property of a structure.
type PropertyDefinition struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	DataType string `json:"dataType"`
	Name     string `json:"name"`
}

// Collection groups objects of a structure.
type Collection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Structure is an object type defined inside a space.
type Structure struct {
	ID                  string               `json:"id"`
	Title               string               `json:"title"`
	PluralName          string               `json:"pluralName"`
	PropertyDefinitions []PropertyDefinition `json:"propertyDefinitions"`
	LabelColor          string               `json:"labelColor"`
	Collections         []Collection         `json:"collections"`
}

// SpaceInfo is the structure listing for one space.
type SpaceInfo struct {
	Structures []Structure `json:"structures"`
}

// Highlight is a matched fragment inside a search result.
type Highlight struct {
	Context  map[string]any `json:"context,omitempty"`
	Snippets []string       `json:"snippets"`
	Score    *float64       `json:"score,omitempty"`
}

// SearchResult is one object matched by a search.
type SearchResult struct {
	ID          string      `json:"id"`
	SpaceID     string      `json:"spaceId"`
	StructureID string      `json:"structureId"`
	Title       string      `json:"title"`
	Highlights  []Highlight `json:"highlights"`
}

// SearchMode selects how the upstream matches a search term.
type SearchMode string

const (
	SearchModeFullText  SearchMode = "fullText"
	SearchModeTitleOnly SearchMode = "title"
	DefaultSearchMode              = SearchModeFullText
)

// ParseSearchMode maps user input to a search mode. Empty input selects the
// default mode.
func ParseSearchMode(value string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return DefaultSearchMode, nil
	case "fulltext", "full-text", "full_text":
		return SearchModeFullText, nil
	case "title", "titleonly", "title-only":
		return SearchModeTitleOnly, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (expected fullText or title)", value)
	}
}

// WriteResult reports the outcome of a write operation.
//
// Synthetic is set when the upstream returned no readable body and success
// was inferred from the status code.
type WriteResult struct {
	Success   bool           `json:"success"`
	Synthetic bool           `json:"synthetic,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
