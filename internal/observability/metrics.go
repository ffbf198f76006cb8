package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// The exporter stays off external interfaces; scrapers go through /metrics on
// the main listener.
const (
	exporterHost        = "127.0.0.1"
	defaultExporterPort = 9090
)

var (
	// TelemetrySystem receives gateway, tool, and HTTP metrics. Nil disables emission.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the collected metrics.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on the loopback port (0 picks a
// free one) and routes telemetry to it. The namespace defaults to
// serviceName. A previous exporter is stopped first.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if err := StopMetrics(); err != nil {
		return fmt.Errorf("stop previous exporter: %w", err)
	}
	if port < 0 {
		port = 0
	}

	metricNamespace := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		metricNamespace = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(metricNamespace, net.JoinHostPort(exporterHost, strconv.Itoa(port)))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	boundPort, err := resolvePort(exporter.GetAddr())
	if err != nil || boundPort == 0 {
		boundPort = port
		if boundPort == 0 {
			boundPort = defaultExporterPort
		}
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: exporter,
	})
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("init telemetry: %w", err)
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	metricsPort = boundPort
	return nil
}

// StopMetrics shuts the exporter down and disables emission.
func StopMetrics() error {
	var err error
	if PrometheusExporter != nil {
		err = PrometheusExporter.Stop()
		PrometheusExporter = nil
	}
	TelemetrySystem = nil
	metricsPort = 0
	return err
}

// GetMetricsPort returns the exporter's port, or 0 when metrics are off.
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
