package gateway

import (
	"strings"

	"github.com/spacelink/spacelink/internal/core"
)

const (
	searchMarker   = "/search"
	linkSaveMarker = "/save-weblink"
)

// Classify maps a request path onto its rate category. Every path maps to
// exactly one category; search wins when several markers are present.
func Classify(path string) core.RateCategory {
	value := strings.ToLower(path)
	switch {
	case strings.Contains(value, searchMarker):
		return core.RateCategorySearch
	case strings.Contains(value, linkSaveMarker):
		return core.RateCategoryLinkSave
	default:
		return core.RateCategoryGeneral
	}
}
