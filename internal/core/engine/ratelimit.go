package engine

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/spacelink/spacelink/internal/core"
)

// RateLimit represents a fixed rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultLimits mirrors the upstream's published per-category budgets.
var DefaultLimits = map[core.RateCategory]RateLimit{
	core.RateCategoryGeneral:  {RequestsPerWindow: 5, WindowDuration: time.Minute},
	core.RateCategorySearch:   {RequestsPerWindow: 120, WindowDuration: time.Minute},
	core.RateCategoryLinkSave: {RequestsPerWindow: 10, WindowDuration: time.Minute},
}

// Tracker enforces per-category fixed-window budgets. It is the only shared
// mutable state of a gateway and is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	windows map[core.RateCategory]core.RateWindow
	limits  map[core.RateCategory]RateLimit
	margin  float64
	clock   func() time.Time
	after   func(time.Duration) <-chan time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithAfter overrides the wait primitive used while a window is exhausted.
func WithAfter(after func(time.Duration) <-chan time.Time) TrackerOption {
	return func(t *Tracker) {
		if after != nil {
			t.after = after
		}
	}
}

// WithMargin scales every budget by a ratio in (0,1].
func WithMargin(margin float64) TrackerOption {
	return func(t *Tracker) {
		if margin > 0 && margin <= 1 {
			t.margin = margin
		}
	}
}

// NewTracker builds a tracker. Categories missing from limits fall back to
// DefaultLimits; limits are fixed for the tracker's lifetime.
func NewTracker(limits map[core.RateCategory]RateLimit, opts ...TrackerOption) *Tracker {
	merged := make(map[core.RateCategory]RateLimit, len(DefaultLimits))
	for category, limit := range DefaultLimits {
		merged[category] = limit
	}
	for category, limit := range limits {
		if limit.RequestsPerWindow <= 0 || limit.WindowDuration <= 0 {
			continue
		}
		merged[category] = limit
	}

	t := &Tracker{
		windows: make(map[core.RateCategory]core.RateWindow),
		limits:  merged,
		clock:   func() time.Time { return time.Now().UTC() },
		after:   time.After,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AcquireSlot blocks until the category has budget and counts the request
// against it. Waiters are not ordered: everyone parked on an exhausted window
// wakes at its reset and re-checks. A cancelled context ends the wait without
// consuming a slot.
func (t *Tracker) AcquireSlot(ctx context.Context, category core.RateCategory) error {
	if t == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		granted, wait := t.TryAcquire(category)
		if granted {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.after(wait):
		}
	}
}

// TryAcquire performs one admission check. When the budget is exhausted it
// returns the time left until the window resets.
func (t *Tracker) TryAcquire(category core.RateCategory) (bool, time.Duration) {
	if t == nil {
		return true, 0
	}
	limit := t.Limit(category)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	window, ok := t.windows[category]
	if !ok || window.Expired(now) {
		t.windows[category] = core.RateWindow{
			RequestsUsed:  1,
			WindowResetAt: now.Add(limit.WindowDuration),
		}
		return true, 0
	}

	if window.RequestsUsed < limit.RequestsPerWindow {
		window.RequestsUsed++
		t.windows[category] = window
		return true, 0
	}

	return false, window.WindowResetAt.Sub(now)
}

// Restore seeds a category with a window observed elsewhere, such as one
// persisted by an earlier process. Expired windows are ignored, and a live
// local window is only replaced by one that has used more of the budget.
func (t *Tracker) Restore(category core.RateCategory, window core.RateWindow) bool {
	if t == nil || window.RequestsUsed <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if window.Expired(now) {
		return false
	}
	if current, ok := t.windows[category]; ok && !current.Expired(now) && current.RequestsUsed >= window.RequestsUsed {
		return false
	}
	t.windows[category] = window
	return true
}

// Reset forgets the current window of the given categories, or of every
// category when none are named.
func (t *Tracker) Reset(categories ...core.RateCategory) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(categories) == 0 {
		t.windows = make(map[core.RateCategory]core.RateWindow)
		return
	}
	for _, category := range categories {
		delete(t.windows, category)
	}
}

// Limit returns the effective limit for a category after the safety margin.
func (t *Tracker) Limit(category core.RateCategory) RateLimit {
	if t == nil {
		return RateLimit{RequestsPerWindow: 1, WindowDuration: time.Minute}
	}

	limit, ok := t.limits[category]
	if !ok {
		limit = t.limits[core.RateCategoryGeneral]
	}
	return t.applyMargin(limit)
}

// WindowSnapshot is a point-in-time view of one category.
type WindowSnapshot struct {
	Category      core.RateCategory `json:"category" yaml:"category"`
	MaxRequests   int               `json:"max_requests" yaml:"max_requests"`
	Window        time.Duration     `json:"window" yaml:"window"`
	RequestsUsed  int               `json:"requests_used" yaml:"requests_used"`
	WindowResetAt *time.Time        `json:"window_reset_at,omitempty" yaml:"window_reset_at,omitempty"`
}

// Remaining reports the budget left in the current window.
func (s WindowSnapshot) Remaining() int {
	remaining := s.MaxRequests - s.RequestsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot reports every known category. Expired windows are shown as unused.
func (t *Tracker) Snapshot() []WindowSnapshot {
	if t == nil {
		return nil
	}
	categories := make([]core.RateCategory, 0, len(t.limits))
	for category := range t.limits {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	snapshots := make([]WindowSnapshot, 0, len(categories))
	for _, category := range categories {
		limit := t.applyMargin(t.limits[category])
		snap := WindowSnapshot{
			Category:    category,
			MaxRequests: limit.RequestsPerWindow,
			Window:      limit.WindowDuration,
		}
		if window, ok := t.windows[category]; ok && !window.Expired(now) {
			resetAt := window.WindowResetAt
			snap.RequestsUsed = window.RequestsUsed
			snap.WindowResetAt = &resetAt
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

func (t *Tracker) applyMargin(limit RateLimit) RateLimit {
	if t.margin <= 0 || t.margin > 1 {
		return limit
	}
	adjusted := int(math.Floor(float64(limit.RequestsPerWindow) * t.margin))
	if adjusted < 1 {
		adjusted = 1
	}
	limit.RequestsPerWindow = adjusted
	return limit
}
