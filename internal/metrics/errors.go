package metrics

import (
	"strconv"

	"github.com/spacelink/spacelink/internal/observability"
)

// Error metric names
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// RecordError counts an error envelope written to a caller.
func RecordError(errorCode string, httpStatus int) {
	counter(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	counter(PanicsTotalName, nil)
}

// RecordErrorByEndpoint counts an error per route. endpoint must be a route
// pattern such as "/tools/{name}", never a raw path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if endpoint == "" {
		endpoint = "/unknown"
	}
	counter(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

func counter(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}
