// Package metrics exposes Prometheus collectors and OpenTelemetry instruments
// for the monitoring pipeline.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

const namespace = "txmon"

// Collector records pipeline, ingestion and HTTP measurements. It satisfies
// risk.Recorder.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	assessmentsTotal    *prometheus.CounterVec
	assessmentDuration  prometheus.Histogram
	riskScore           prometheus.Histogram
	lookupDegraded      prometheus.Counter
	alertsCreated       *prometheus.CounterVec
	ingestErrors        *prometheus.CounterVec

	otelAssessments otelmetric.Int64Counter
	otelScore       otelmetric.Float64Histogram
	otelLatency     otelmetric.Float64Histogram
	otelDegraded    otelmetric.Int64Counter
}

// NewCollector registers collectors on registry and creates instruments on meter.
func NewCollector(registry *prometheus.Registry, meter otelmetric.Meter) (*Collector, error) {
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		}, []string{"method", "route"}),

		assessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Transactions assessed by risk level and disposition",
		}, []string{"risk_level", "status"}),

		assessmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessment_duration_seconds",
			Help:      "Risk pipeline latency",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 18), // 10μs to ~2.6s
		}),

		riskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "score",
			Help:      "Distribution of risk scores",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		lookupDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "history_lookup_degraded_total",
			Help:      "Structuring checks skipped because the history lookup failed",
		}),

		alertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "created_total",
			Help:      "Alerts raised by priority",
		}, []string{"priority"}),

		ingestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Rejected ingestion records by source",
		}, []string{"source"}),
	}

	var err error
	if c.otelAssessments, err = meter.Int64Counter("risk.assessments",
		otelmetric.WithDescription("Transactions assessed")); err != nil {
		return nil, fmt.Errorf("failed to create assessments counter: %w", err)
	}
	if c.otelScore, err = meter.Float64Histogram("risk.score",
		otelmetric.WithDescription("Risk score distribution")); err != nil {
		return nil, fmt.Errorf("failed to create score histogram: %w", err)
	}
	if c.otelLatency, err = meter.Float64Histogram("risk.assessment.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Risk pipeline latency")); err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	if c.otelDegraded, err = meter.Int64Counter("risk.history_lookup.degraded",
		otelmetric.WithDescription("Structuring checks skipped on lookup failure")); err != nil {
		return nil, fmt.Errorf("failed to create degraded counter: %w", err)
	}

	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordAssessment(ctx context.Context, level transaction.RiskLevel, status transaction.Status, score float64, elapsed time.Duration) {
	c.assessmentsTotal.WithLabelValues(string(level), string(status)).Inc()
	c.assessmentDuration.Observe(elapsed.Seconds())
	c.riskScore.Observe(score)

	attrs := otelmetric.WithAttributes(
		attribute.String("risk.level", string(level)),
		attribute.String("risk.status", string(status)),
	)
	c.otelAssessments.Add(ctx, 1, attrs)
	c.otelScore.Record(ctx, score, attrs)
	c.otelLatency.Record(ctx, float64(elapsed.Microseconds())/1000)
}

func (c *Collector) RecordLookupDegraded(ctx context.Context) {
	c.lookupDegraded.Inc()
	c.otelDegraded.Add(ctx, 1)
}

// RecordAlert counts a raised alert.
func (c *Collector) RecordAlert(priority alert.Priority) {
	c.alertsCreated.WithLabelValues(string(priority)).Inc()
}

// RecordIngestError counts a rejected record from source (api, batch, csv).
func (c *Collector) RecordIngestError(source string) {
	c.ingestErrors.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
