package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/tools"
)

func TestFromGatewayMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"rate limited", &gateway.RateLimitExceeded{Category: core.RateCategorySearch}, CodeRateLimited, http.StatusTooManyRequests},
		{"auth", &gateway.AuthenticationFailed{}, CodeUnauthorized, http.StatusUnauthorized},
		{"upstream", &gateway.UpstreamError{StatusCode: 404}, CodeExternalService, http.StatusBadGateway},
		{"transport", &gateway.TransportError{Op: "GET /spaces"}, CodeExternalService, http.StatusBadGateway},
		{"transport timeout", &gateway.TransportError{Op: "GET /spaces", Timeout: true}, CodeTimeout, http.StatusGatewayTimeout},
		{"decode", &gateway.DecodeFailure{Err: fmt.Errorf("bad")}, CodeDataProcessing, http.StatusBadGateway},
		{"wrapped gateway", fmt.Errorf("list: %w", &gateway.AuthenticationFailed{}), CodeUnauthorized, http.StatusUnauthorized},
		{"invalid params", fmt.Errorf("%w: url is required", spaces.ErrInvalidParams), CodeInvalidInput, http.StatusBadRequest},
		{"empty search", spaces.ErrEmptySearchResponse, CodeExternalService, http.StatusBadGateway},
		{"deadline", fmt.Errorf("wait for search budget: %w", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, CodeCancelled, http.StatusRequestTimeout},
		{"unknown tool", fmt.Errorf("%w: %q", tools.ErrUnknownTool, "x"), CodeNotFound, http.StatusNotFound},
		{"bad tool args", fmt.Errorf("%w: eof", tools.ErrInvalidArguments), CodeInvalidInput, http.StatusBadRequest},
		{"other", fmt.Errorf("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := FromGateway(context.Background(), tt.err)
			require.NotNil(t, envelope)
			require.Equal(t, tt.wantCode, envelope.Code)
			require.Equal(t, tt.wantStatus, HTTPStatusFromEnvelope(envelope))
			require.NotEmpty(t, envelope.CorrelationID)
		})
	}

	require.Nil(t, FromGateway(context.Background(), nil))
}

func TestFromGatewayDetails(t *testing.T) {
	envelope := FromGateway(context.Background(), &gateway.RateLimitExceeded{
		Category:   core.RateCategoryLinkSave,
		RetryAfter: 1500 * time.Millisecond,
	})
	require.Equal(t, "link-save", envelope.Details["category"])
	require.Equal(t, 2, envelope.Details["retry_after_seconds"])
	require.Equal(t, string(gateway.KindRateLimitExceeded), envelope.Details["kind"])

	envelope = FromGateway(context.Background(), &gateway.UpstreamError{StatusCode: 503})
	require.Equal(t, 503, envelope.Details["upstream_status"])
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tools/search_content", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &gateway.RateLimitExceeded{Category: core.RateCategorySearch, RetryAfter: 30 * time.Second})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "30", rec.Header().Get("Retry-After"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.NotEmpty(t, body.Error.RequestID)
	require.Equal(t, "search", body.Error.Details["category"])
}

func TestRespondWithErrorKeepsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/tools/nope", nil), NewNotFoundError("unknown tool"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unknown tool", body.Error.Message)
}

func TestEnsureEnvelopeNil(t *testing.T) {
	envelope := EnsureEnvelope(nil)
	require.Equal(t, CodeInternal, envelope.Code)
}

func TestRespondWithErrorKeepsCauseOutOfBody(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("open /var/lib/spacelink/cache.db: %w", fmt.Errorf("disk I/O error"))
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/tools", nil), WrapInternal(context.Background(), err, "tool registry unavailable"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "/var/lib/spacelink")
	require.NotContains(t, rec.Body.String(), "disk I/O")

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "tool registry unavailable", body.Error.Message)
	require.Empty(t, body.Error.Details)
}

func TestWrapRecordsCauseInContext(t *testing.T) {
	envelope := Wrap(context.Background(), CodeServiceUnavailable, fmt.Errorf("connection refused"), "metrics exporter unavailable")
	require.Equal(t, "connection refused", envelope.Context["cause"])
	require.Equal(t, envelope.CorrelationID, envelope.TraceID)
}

func TestHTTPStatusFromUnknownCode(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_NEW"))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}
