package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacelink/spacelink/internal/observability"
)

func useCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestGatewayMetrics(t *testing.T) {
	collector := useCollector(t)

	RecordThrottleWait("search", 250*time.Millisecond)
	RecordGatewayRequest("search", "success", 40*time.Millisecond)
	RecordGatewayRequest("general", "rate_limit_exceeded", 10*time.Millisecond)

	assert.Greater(t, collector.CountMetricsByName(GatewayThrottleWait), 0)
	assert.Greater(t, collector.CountMetricsByName(GatewayRequestsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(GatewayRequestDuration), 0)
}

func TestToolAndCacheMetrics(t *testing.T) {
	collector := useCollector(t)

	RecordToolInvocation("list_spaces", true)
	RecordToolInvocation("save_weblink", false)
	RecordCacheLookup("list_spaces", true)

	assert.Greater(t, collector.CountMetricsByName(ToolInvocationsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ResponseCacheLookups), 0)
}

func TestErrorMetrics(t *testing.T) {
	collector := useCollector(t)

	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("", "RATE_LIMITED")
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestRecordersAreSilentWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordGatewayRequest("general", "success", time.Millisecond)
		RecordToolInvocation("list_spaces", true)
		RecordPanic()
	})
}
