package metrics

import (
	"time"

	"github.com/spacelink/spacelink/internal/observability"
)

// Gateway and tool metric names
const (
	GatewayRequestsTotal   = "gateway_requests_total"
	GatewayRequestDuration = "gateway_request_duration_ms"
	GatewayThrottleWait    = "gateway_throttle_wait_ms"
	ToolInvocationsTotal   = "tool_invocations_total"
	ResponseCacheLookups   = "response_cache_lookups_total"
)

// RecordGatewayRequest records one dispatched upstream request.
// outcome is "success", "synthetic", or a gateway error kind.
func RecordGatewayRequest(category string, outcome string, duration time.Duration) {
	counter(GatewayRequestsTotal, map[string]string{
		"category": category,
		"outcome":  outcome,
	})
	histogram(GatewayRequestDuration, duration, map[string]string{"category": category})
}

// RecordThrottleWait records how long a request waited for rate budget.
func RecordThrottleWait(category string, wait time.Duration) {
	histogram(GatewayThrottleWait, wait, map[string]string{"category": category})
}

// RecordToolInvocation records a tool execution with status
func RecordToolInvocation(tool string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	counter(ToolInvocationsTotal, map[string]string{
		"tool":   tool,
		"status": status,
	})
}

// RecordCacheLookup records a response cache hit or miss
func RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	counter(ResponseCacheLookups, map[string]string{
		"operation": operation,
		"result":    result,
	})
}

func histogram(name string, value time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, value, labels)
	}
}
