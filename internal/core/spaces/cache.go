package spaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const (
	opListSpaces = "list_spaces"
	opSpaceInfo  = "get_space_info"
)

// ResponseCache stores raw upstream payloads for read operations.
// GetCachedResponse returns nil without error on a miss.
type ResponseCache interface {
	GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error)
	SetCachedResponse(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
}

// ListSpacesKey is the cache key for the space listing.
func ListSpacesKey() string {
	return "spaces"
}

// SpaceInfoKey is the cache key for one space's structures.
func SpaceInfoKey(spaceID string) string {
	return "space-info:" + strings.TrimSpace(spaceID)
}

// CacheScope derives a key prefix from the API root and credential so two
// accounts sharing one store never read each other's entries. The token
// itself is never stored.
func CacheScope(baseURL, token string) string {
	sum := sha256.Sum256([]byte(strings.TrimRight(strings.TrimSpace(baseURL), "/") + "\x00" + strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:6])
}

// ScopedCache prefixes every key with a scope.
type ScopedCache struct {
	Cache ResponseCache
	Scope string
}

// NewScopedCache wraps cache. A nil cache yields nil.
func NewScopedCache(cache ResponseCache, scope string) ResponseCache {
	if cache == nil {
		return nil
	}
	return &ScopedCache{Cache: cache, Scope: scope}
}

func (s *ScopedCache) key(key string) string {
	if s.Scope == "" {
		return key
	}
	return s.Scope + ":" + key
}

// GetCachedResponse reads the scoped key.
func (s *ScopedCache) GetCachedResponse(ctx context.Context, key string) (json.RawMessage, error) {
	return s.Cache.GetCachedResponse(ctx, s.key(key))
}

// SetCachedResponse writes the scoped key.
func (s *ScopedCache) SetCachedResponse(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	return s.Cache.SetCachedResponse(ctx, s.key(key), payload, ttl)
}
