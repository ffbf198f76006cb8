package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spacelink/spacelink/internal/errors"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("credentials", stubChecker{})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Equal(t, "1.2.3", resp.Version)
	require.Equal(t, StatusHealthy, resp.Checks["credentials"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenRequiredCheckFails(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("credentials", stubChecker{err: errors.New("api.token is required")})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, apperrors.CodeServiceUnavailable, resp.Error.Code)
	require.NotContains(t, resp.Error.Message, "api.token")

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	require.Equal(t, StatusUnhealthy, checks["credentials"])
}

func TestOptionalCheckOnlyDegrades(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("credentials", stubChecker{})
	manager.RegisterOptionalChecker("store", stubChecker{err: errors.New("database is locked")})

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, ProbeReady, resp.Probe)
	require.Equal(t, StatusDegraded, resp.Status)
	require.Equal(t, StatusDegraded, resp.Checks["store"])
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("credentials", stubChecker{err: errors.New("missing token")})

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, StatusHealthy, resp.Status)
	require.Empty(t, resp.Checks)
}

func TestRunHealthChecksReportsTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	manager := NewHealthManager("dev")
	manager.RegisterChecker("slow", HealthCheckerFunc(func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	checks := manager.runHealthChecks(ctx)
	require.Equal(t, statusTimeout, checks["slow"])
	require.Equal(t, StatusDegraded, manager.determineOverallStatus(checks))
}

func TestDetermineOverallStatus(t *testing.T) {
	manager := NewHealthManager("dev")

	require.Equal(t, StatusHealthy, manager.determineOverallStatus(nil))
	require.Equal(t, StatusDegraded, manager.determineOverallStatus(map[string]string{"store": StatusDegraded}))
	require.Equal(t, StatusUnhealthy, manager.determineOverallStatus(map[string]string{
		"store":       StatusDegraded,
		"credentials": StatusUnhealthy,
	}))
}

func TestGlobalHandlersWithoutManager(t *testing.T) {
	original := globalHealthManager
	globalHealthManager = nil
	t.Cleanup(func() { globalHealthManager = original })

	rec := httptest.NewRecorder()
	StartupHandler(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
