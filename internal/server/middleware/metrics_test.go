package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	return collector
}

func TestRequestMetricsRecordsCountAndDuration(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tools":[]}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"tools":[]}`, rec.Body.String())
	assert.Greater(t, collector.CountMetricsByName(httpRequestsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(httpRequestDuration), 0)
	assert.Equal(t, 0, collector.CountMetricsByName(httpErrorsTotal))
}

func TestRequestMetricsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/save_weblink", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRequestMetricsCountsUpstreamFailures(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/search_content", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Greater(t, collector.CountMetricsByName(httpErrorsTotal), 0)
}

func TestGetEndpointPatternFallbacks(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/ratelimits", "/ratelimits"},
		{"/tools", "/tools"},
		{"/tools/save_to_daily_note", "/tools/{name}"},
		{"/spaces/123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, getEndpointPattern(req))
		})
	}
}

func TestGetEndpointPatternUsesChiRoute(t *testing.T) {
	var pattern string
	router := chi.NewRouter()
	router.Post("/tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		pattern = getEndpointPattern(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/tools/list_spaces", nil))
	assert.Equal(t, "/tools/{name}", pattern)
}

func TestRequestIDReusesValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set(RequestIDHeader, "agent-run-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "agent-run-42", seen)
	assert.Equal(t, "agent-run-42", rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesInvalidHeader(t *testing.T) {
	for name, value := range map[string]string{
		"spaces":   "id with spaces",
		"too long": strings.Repeat("a", maxRequestIDLength+1),
		"control":  "id\x00x",
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/tools", nil)
			req.Header.Set(RequestIDHeader, value)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.NotEqual(t, value, seen)
			assert.Len(t, seen, 36)
		})
	}
}

func TestRecoveryHidesPanicValue(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret argument value")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/list_spaces", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), codeInternal)
	assert.NotContains(t, rec.Body.String(), "secret argument value")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
