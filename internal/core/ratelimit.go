package core

import (
	"fmt"
	"strings"
	"time"
)

// RateCategory names the budget a request draws from.
type RateCategory string

const (
	RateCategoryGeneral  RateCategory = "general"
	RateCategorySearch   RateCategory = "search"
	RateCategoryLinkSave RateCategory = "link-save"
)

// RateCategories lists every category in a stable order.
var RateCategories = []RateCategory{
	RateCategoryGeneral,
	RateCategorySearch,
	RateCategoryLinkSave,
}

// ParseRateCategory normalizes a category name. Underscores are accepted so
// config keys like "link_save" resolve.
func ParseRateCategory(value string) (RateCategory, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
	for _, category := range RateCategories {
		if string(category) == normalized {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown rate category: %s", value)
}

// RateWindow captures fixed-window state for one category. A window is
// replaced, not reset in place, once WindowResetAt passes.
type RateWindow struct {
	RequestsUsed  int       `json:"requests_used"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// Expired reports whether now is at or past the reset boundary.
func (w RateWindow) Expired(now time.Time) bool {
	return !now.Before(w.WindowResetAt)
}
