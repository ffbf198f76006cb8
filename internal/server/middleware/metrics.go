package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/observability"
)

const (
	httpRequestsTotal   = "http_requests_total"
	httpRequestDuration = "http_request_duration_ms"
	httpErrorsTotal     = "http_errors_total"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern returns the chi route pattern so tool names and other
// path parameters never become label values.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/":
		return "/"
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/tools" || path == "/tools/":
		return "/tools"
	case strings.HasPrefix(path, "/tools/"):
		return "/tools/{name}"
	case path == "/version", path == "/metrics", path == "/ratelimits":
		return path
	default:
		return "/unknown"
	}
}

// isProbe reports paths polled by orchestrators and scrapers; their request
// lines are logged at debug level.
func isProbe(endpoint string) bool {
	return strings.HasPrefix(endpoint, "/health") || endpoint == "/metrics"
}

// RequestMetrics records request count, latency, and error class per route,
// and logs one line per request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(recorder.statusCode)

		if sys := observability.TelemetrySystem; sys != nil {
			labels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
				"status":   status,
			}
			_ = sys.Counter(httpRequestsTotal, 1, labels)
			_ = sys.Histogram(httpRequestDuration, duration, labels)

			if recorder.statusCode >= http.StatusBadRequest {
				errorType := "client_error"
				if recorder.statusCode >= http.StatusInternalServerError {
					errorType = "server_error"
				}
				_ = sys.Counter(httpErrorsTotal, 1, map[string]string{
					"method":     r.Method,
					"endpoint":   endpoint,
					"status":     status,
					"error_type": errorType,
				})
			}
		}

		logger := observability.ServerLogger
		if logger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", recorder.statusCode),
			zap.Duration("duration", duration),
			zap.Int64("response_size", recorder.bytesWritten),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		if isProbe(endpoint) {
			logger.Debug("HTTP request completed", fields...)
			return
		}
		logger.Info("HTTP request completed", fields...)
	})
}
