package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spacelink/spacelink/internal/core"
)

// RateWindowEntry is a persisted window with its category.
type RateWindowEntry struct {
	Category  core.RateCategory
	Window    core.RateWindow
	UpdatedAt time.Time
}

// RateWindowQuery selects persisted windows.
type RateWindowQuery struct {
	All      bool
	Category core.RateCategory
}

func (q RateWindowQuery) Validate() error {
	if q.All || q.Category != "" {
		return nil
	}
	return errors.New("must specify --all or --category")
}

func (q RateWindowQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	return "WHERE category = ?", []any{string(q.Category)}, nil
}

// ListRateWindows returns persisted windows ordered by category.
func (s *Store) ListRateWindows(ctx context.Context, q RateWindowQuery) ([]RateWindowEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT category, requests_used, window_reset_at, updated_at
		FROM rate_windows
		%s
		ORDER BY category
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateWindowEntry{}
	for rows.Next() {
		var (
			category      string
			requestsUsed  int
			windowResetAt int64
			updatedAt     int64
		)
		if err := rows.Scan(&category, &requestsUsed, &windowResetAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate windows: %w", err)
		}

		entries = append(entries, RateWindowEntry{
			Category: core.RateCategory(category),
			Window: core.RateWindow{
				RequestsUsed:  requestsUsed,
				WindowResetAt: time.UnixMilli(windowResetAt).UTC(),
			},
			UpdatedAt: time.UnixMilli(updatedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate windows: %w", err)
	}

	return entries, nil
}

// ResetRateWindows deletes persisted windows and returns the number removed.
func (s *Store) ResetRateWindows(ctx context.Context, q RateWindowQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_windows
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate windows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate windows: %w", err)
	}
	return affected, nil
}
