package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spacelink/spacelink/internal/core"
)

// GetRateWindow loads the persisted window for category. A category that was
// never saved yields nil.
func (s *Store) GetRateWindow(ctx context.Context, category core.RateCategory) (*core.RateWindow, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return nil, errors.New("category is required")
	}

	var (
		used    int
		resetMs int64
	)
	err = s.DB.QueryRowContext(ctx,
		`SELECT requests_used, window_reset_at FROM rate_windows WHERE category = ?`,
		string(category),
	).Scan(&used, &resetMs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load %s rate window: %w", category, err)
	}

	return &core.RateWindow{
		RequestsUsed:  used,
		WindowResetAt: time.UnixMilli(resetMs).UTC(),
	}, nil
}

// UpdateRateWindow upserts the window for category.
func (s *Store) UpdateRateWindow(ctx context.Context, category core.RateCategory, window *core.RateWindow) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	switch {
	case category == "":
		return errors.New("category is required")
	case window == nil:
		return errors.New("rate window is required")
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rate_windows (category, requests_used, window_reset_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			requests_used = excluded.requests_used,
			window_reset_at = excluded.window_reset_at,
			updated_at = excluded.updated_at
	`, string(category), window.RequestsUsed, window.WindowResetAt.UTC().UnixMilli(), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s rate window: %w", category, err)
	}
	return nil
}
