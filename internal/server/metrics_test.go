package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spacelink/spacelink/internal/errors"
	"github.com/spacelink/spacelink/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func useMetricsTransport(t *testing.T, fn roundTripFunc) {
	t.Helper()

	originalClient := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: fn}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":9090")
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		observability.PrometheusExporter = nil
	})
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error.Code
}

func TestMetricsHandlerProxiesPrometheusOutput(t *testing.T) {
	useMetricsTransport(t, func(req *http.Request) (*http.Response, error) {
		body := "# HELP spacelink_gateway_requests_total Upstream requests\nspacelink_gateway_requests_total{category=\"search\",outcome=\"success\"} 3\n"
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}
		resp.Header.Set("Content-Type", "text/plain; version=0.0.4")
		resp.Header.Set("Connection", "close")
		return resp, nil
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Empty(t, rec.Header().Get("Connection"))
	require.Contains(t, rec.Body.String(), "gateway_requests_total")
}

func TestMetricsHandlerReportsUnreachableExporter(t *testing.T) {
	useMetricsTransport(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, apperrors.CodeServiceUnavailable, decodeErrorCode(t, rec.Body))
}

func TestMetricsHandlerReturnsServiceUnavailableWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, apperrors.CodeServiceUnavailable, decodeErrorCode(t, rec.Body))
}
