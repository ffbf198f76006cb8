package spaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/metrics"
)

const (
	pathSpaces          = "/spaces"
	pathSpaceInfo       = "/space-info"
	pathSearch          = "/search"
	pathSaveWeblink     = "/save-weblink"
	pathSaveToDailyNote = "/save-to-daily-note"
)

// ErrEmptySearchResponse is returned in strict search mode when a search
// answers 2xx without a readable body.
var ErrEmptySearchResponse = errors.New("search returned an empty response")

// ErrInvalidParams wraps every argument validation failure.
var ErrInvalidParams = errors.New("invalid parameters")

func invalidParams(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, reason)
}

// Dispatcher sends a request through the gateway.
type Dispatcher interface {
	Dispatch(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// Client maps each upstream operation onto a gateway request.
type Client struct {
	Gateway Dispatcher

	// Cache, when set with a positive CacheTTL, backs ListSpaces and
	// GetSpaceInfo. Writes and search always go upstream.
	Cache    ResponseCache
	CacheTTL time.Duration

	StrictSearch bool
	Logger       *logging.Logger
}

type spacesEnvelope struct {
	Spaces []core.Space `json:"spaces"`
}

type searchEnvelope struct {
	Results []core.SearchResult `json:"results"`
}

// ListSpaces returns every space visible to the token.
func (c *Client) ListSpaces(ctx context.Context) ([]core.Space, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	payload, err := c.cachedGet(ctx, opListSpaces, ListSpacesKey(), gateway.Get(pathSpaces, nil))
	if err != nil {
		return nil, err
	}

	var envelope spacesEnvelope
	if err := decodePayload(payload, &envelope); err != nil {
		return nil, err
	}
	if envelope.Spaces == nil {
		envelope.Spaces = []core.Space{}
	}
	return envelope.Spaces, nil
}

// GetSpaceInfo returns the structures defined in a space. The id is sent
// as given.
func (c *Client) GetSpaceInfo(ctx context.Context, spaceID string) (*core.SpaceInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("spaceid", spaceID)

	payload, err := c.cachedGet(ctx, opSpaceInfo, SpaceInfoKey(spaceID), gateway.Get(pathSpaceInfo, query))
	if err != nil {
		return nil, err
	}

	var info core.SpaceInfo
	if err := decodePayload(payload, &info); err != nil {
		return nil, err
	}
	if info.Structures == nil {
		info.Structures = []core.Structure{}
	}
	return &info, nil
}

// SearchContent runs a search across the given spaces.
func (c *Client) SearchContent(ctx context.Context, params SearchParams) ([]core.SearchResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Query) == "" {
		return nil, invalidParams("search term is required")
	}

	result, err := c.Gateway.Dispatch(ctx, gateway.Post(pathSearch, params.request()))
	if err != nil {
		return nil, err
	}

	// Search always answers with a body; a synthetic marker here masks an
	// upstream anomaly.
	if result == nil || result.Synthetic {
		if c.StrictSearch {
			return nil, ErrEmptySearchResponse
		}
		if c.Logger != nil {
			fields := []zap.Field{zap.Int("space_count", len(params.SpaceIDs))}
			if result != nil && result.DecodeErr != nil {
				fields = append(fields, zap.String("decode_error", result.DecodeErr.Error()))
			}
			c.Logger.Warn("Search returned no readable body; treating as no results", fields...)
		}
		return []core.SearchResult{}, nil
	}

	var envelope searchEnvelope
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		envelope.Results = []core.SearchResult{}
	}
	return envelope.Results, nil
}

// SaveWeblink stores a URL in a space.
func (c *Client) SaveWeblink(ctx context.Context, params WeblinkParams) (*core.WriteResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.SpaceID) == "" {
		return nil, invalidParams("space id is required")
	}
	if strings.TrimSpace(params.URL) == "" {
		return nil, invalidParams("url is required")
	}

	result, err := c.Gateway.Dispatch(ctx, gateway.Post(pathSaveWeblink, params.request()))
	if err != nil {
		return nil, err
	}
	return writeResult(result), nil
}

// SaveToDailyNote appends markdown to today's daily note.
func (c *Client) SaveToDailyNote(ctx context.Context, params DailyNoteParams) (*core.WriteResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.SpaceID) == "" {
		return nil, invalidParams("space id is required")
	}
	if strings.TrimSpace(params.Content) == "" {
		return nil, invalidParams("content is required")
	}

	result, err := c.Gateway.Dispatch(ctx, gateway.Post(pathSaveToDailyNote, params.request()))
	if err != nil {
		return nil, err
	}
	return writeResult(result), nil
}

func (c *Client) ready() error {
	if c == nil || c.Gateway == nil {
		return errors.New("spaces client is not configured")
	}
	return nil
}

func (c *Client) cachedGet(ctx context.Context, operation, key string, req gateway.Request) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	useCache := c.Cache != nil && c.CacheTTL > 0
	if useCache {
		cached, err := c.Cache.GetCachedResponse(ctx, key)
		switch {
		case err != nil:
			c.warn("Response cache lookup failed", key, err)
		case cached != nil:
			metrics.RecordCacheLookup(operation, true)
			return cached, nil
		}
		metrics.RecordCacheLookup(operation, false)
	}

	result, err := c.Gateway.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return gateway.SuccessMarker, nil
	}

	if useCache && !result.Synthetic {
		if err := c.Cache.SetCachedResponse(ctx, key, result.Payload, c.CacheTTL); err != nil {
			c.warn("Response cache write failed", key, err)
		}
	}
	return result.Payload, nil
}

func (c *Client) warn(msg, key string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, zap.String("key", key), zap.Error(err))
}

func decodePayload(payload json.RawMessage, v any) error {
	return (&gateway.Result{Payload: payload}).Decode(v)
}

func writeResult(result *gateway.Result) *core.WriteResult {
	out := &core.WriteResult{Success: true}
	if result == nil || result.Synthetic {
		out.Synthetic = true
		return out
	}

	var data map[string]any
	if err := json.Unmarshal(result.Payload, &data); err == nil {
		out.Data = data
		if success, ok := data["success"].(bool); ok {
			out.Success = success
		}
	}
	return out
}
