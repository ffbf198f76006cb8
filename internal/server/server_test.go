package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/core/spaces"
	apperrors "github.com/spacelink/spacelink/internal/errors"
	"github.com/spacelink/spacelink/internal/server/handlers"
	"github.com/spacelink/spacelink/internal/tools"
)

func newToolServer(t *testing.T, upstream http.HandlerFunc) *Server {
	t.Helper()

	api := httptest.NewServer(upstream)
	t.Cleanup(api.Close)

	tracker := engine.NewTracker(nil)
	gw, err := gateway.New(gateway.Config{BaseURL: api.URL, Token: "server-test-token"}, gateway.WithTracker(tracker))
	require.NoError(t, err)

	registry, err := tools.New(&spaces.Client{Gateway: gw})
	require.NoError(t, err)

	return New(Options{Host: "127.0.0.1", Registry: registry, Tracker: tracker})
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDisabledRoutes(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1", DisableProbes: true, DisableMetrics: true})

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToolsEndpointsWithoutRegistry(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListTools(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected upstream call: %s", r.URL.Path)
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []struct {
			Name     string `json:"name"`
			ReadOnly bool   `json:"read_only"`
		} `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	names := make([]string, 0, len(body.Tools))
	for _, tool := range body.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		tools.NameGetSpaceInfo,
		tools.NameListSpaces,
		tools.NameSaveToDailyNote,
		tools.NameSaveWeblink,
		tools.NameSearchContent,
	}, names)
}

func TestDescribeUnknownTool(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools/delete_everything", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestCallListSpaces(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spaces", r.URL.Path)
		assert.Equal(t, "Bearer server-test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spaces":[{"id":"s1","title":"Research","icon":{"type":"emoji","val":"R"}}]}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/tools/list_spaces", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Tool   string `json:"tool"`
		Result struct {
			Spaces []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"spaces"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, tools.NameListSpaces, body.Tool)
	require.Len(t, body.Result.Spaces, 1)
	assert.Equal(t, "Research", body.Result.Spaces[0].Title)
}

func TestCallRejectsInvalidArguments(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected upstream call: %s", r.URL.Path)
	})

	req := httptest.NewRequest(http.MethodPost, "/tools/search_content", strings.NewReader(`{"query":"x"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
}

func TestCallMapsUpstreamRateLimit(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	req := httptest.NewRequest(http.MethodPost, "/tools/search_content",
		strings.NewReader(`{"searchTerm":"notes","spaceIds":["s1"]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "server-test-token")

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestCallMapsAuthenticationFailure(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad token server-test-token"}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/tools/list_spaces", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "server-test-token")
}

func TestRateLimitsReportsConsumption(t *testing.T) {
	srv := newToolServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	call := httptest.NewRequest(http.MethodPost, "/tools/save_to_daily_note",
		strings.NewReader(`{"spaceId":"s1","mdText":"hello"}`))
	callRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(callRec, call)
	require.Equal(t, http.StatusOK, callRec.Code, callRec.Body.String())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ratelimits", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.RateLimitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	used := map[string]int{}
	for _, window := range body.Windows {
		used[string(window.Category)] = window.RequestsUsed
	}
	assert.Equal(t, 1, used["general"])
	assert.Equal(t, 0, used["search"])
	assert.Equal(t, 0, used["link-save"])
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, adminSignalPath, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv = New(Options{Host: "127.0.0.1", AdminToken: "admin-secret"})

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, adminSignalPath, nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
