package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetCachedResponse returns a cached upstream payload, or nil when the key is
// missing or expired.
func (s *Store) GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var response string
	row := s.DB.QueryRowContext(ctx, `
		SELECT response_json
		FROM response_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().UTC().UnixMilli())

	if err := row.Scan(&response); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	if !json.Valid([]byte(response)) {
		return nil, fmt.Errorf("cached response for %q is not valid JSON", key)
	}
	return json.RawMessage(response), nil
}

// SetCachedResponse stores a payload with a TTL. A non-positive TTL is a no-op.
func (s *Store) SetCachedResponse(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if ttl <= 0 || len(payload) == 0 {
		return nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, response_json, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			response_json = excluded.response_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, string(payload), now.UnixMilli(), expires.UnixMilli())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// ClearCache removes cached responses. With expiredOnly set, live entries are
// kept. It returns the number of rows removed.
func (s *Store) ClearCache(ctx context.Context, expiredOnly bool) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	var result sql.Result
	if expiredOnly {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, time.Now().UTC().UnixMilli())
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM response_cache`)
	}
	if err != nil {
		return 0, fmt.Errorf("clear response cache: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear response cache: %w", err)
	}
	return affected, nil
}
