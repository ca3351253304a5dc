package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/transaction-monitor/internal/metrics"
)

// newCollector builds the service metrics on a dedicated registry that also
// exposes Go runtime and process statistics.
func newCollector(meter otelmetric.Meter) (*metrics.Collector, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector, err := metrics.NewCollector(registry, meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics collector: %w", err)
	}
	return collector, nil
}
