package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/spacelink/spacelink/internal/errors"
)

// Check and aggregate statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	statusTimeout   = "timeout"
)

// Probe names a health endpoint.
type Probe string

const (
	ProbeAggregate Probe = "aggregate"
	ProbeLive      Probe = "live"
	ProbeReady     Probe = "ready"
	ProbeStartup   Probe = "startup"
)

var probeTimeouts = map[Probe]time.Duration{
	ProbeAggregate: 5 * time.Second,
	ProbeReady:     5 * time.Second,
	ProbeStartup:   3 * time.Second,
}

// HealthResponse is the body of the aggregate /health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live, ready, and startup probes.
type ProbeResponse struct {
	Probe     Probe             `json:"probe"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

type registeredCheck struct {
	checker  HealthChecker
	optional bool
}

// HealthManager runs registered checks for the probe endpoints. A failing
// required check makes the service unhealthy; a failing optional check (the
// response cache store, for example) only degrades it.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	version string
}

// NewHealthManager creates a health manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]registeredCheck),
		version: version,
	}
}

// RegisterChecker registers a required check.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, checker, false)
}

// RegisterOptionalChecker registers a check whose failure degrades but does
// not fail the service.
func (hm *HealthManager) RegisterOptionalChecker(name string, checker HealthChecker) {
	hm.register(name, checker, true)
}

func (hm *HealthManager) register(name string, checker HealthChecker, optional bool) {
	if checker == nil {
		return
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = registeredCheck{checker: checker, optional: optional}
}

// runHealthChecks runs every check concurrently. A check still running when
// ctx ends is reported as "timeout".
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	checks := make(map[string]registeredCheck, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	hm.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check registeredCheck) {
			defer wg.Done()

			done := make(chan error, 1)
			go func() { done <- check.checker.CheckHealth(ctx) }()

			status := StatusHealthy
			select {
			case err := <-done:
				if err != nil {
					status = StatusUnhealthy
					if check.optional {
						status = StatusDegraded
					}
				}
			case <-ctx.Done():
				status = statusTimeout
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return results
}

// determineOverallStatus folds check results into one status.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		switch status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, statusTimeout:
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// evaluate runs the checks for probe. Liveness only reports that the process
// serves requests; dependency failures must not get it restarted.
func (hm *HealthManager) evaluate(ctx context.Context, probe Probe) (string, map[string]string) {
	if probe == ProbeLive {
		return StatusHealthy, nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, probeTimeouts[probe])
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	return hm.determineOverallStatus(checks), checks
}

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, probe Probe) {
	status, checks := hm.evaluate(r.Context(), probe)
	if status == StatusUnhealthy {
		respondWithError(w, r, healthEnvelope(probe, status, checks))
		return
	}

	if probe == ProbeAggregate {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		})
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Probe:     probe,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// HealthHandler serves the aggregate health check.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeAggregate)
}

// LivenessHandler serves the liveness probe.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeLive)
}

// ReadinessHandler serves the readiness probe.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeReady)
}

// StartupHandler serves the startup probe.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeStartup)
}

func healthEnvelope(probe Probe, status string, checks map[string]string) error {
	envelope := apperrors.NewServiceUnavailableError(string(probe) + " health check failed")

	details := map[string]interface{}{
		"probe":  string(probe),
		"status": status,
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		details["failing_checks"] = failing
	}

	return envelope.WithDetails(details)
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide health manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide health manager.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func globalProbe(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager == nil {
			respondWithError(w, r, healthEnvelope(probe, "unknown", nil))
			return
		}
		globalHealthManager.serveProbe(w, r, probe)
	}
}

// Package-level probe handlers backed by the process-wide manager.
var (
	HealthHandler    = globalProbe(ProbeAggregate)
	LivenessHandler  = globalProbe(ProbeLive)
	ReadinessHandler = globalProbe(ProbeReady)
	StartupHandler   = globalProbe(ProbeStartup)
)
