package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

func newTestCollector(t *testing.T) (*Collector, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	c, err := NewCollector(prometheus.NewRegistry(), provider.Meter("test"))
	require.NoError(t, err)
	return c, reader
}

func TestCollector_RecordAssessment(t *testing.T) {
	c, reader := newTestCollector(t)
	ctx := context.Background()

	c.RecordAssessment(ctx, transaction.RiskLevelHigh, transaction.StatusBlocked, 0.95, 3*time.Millisecond)
	c.RecordAssessment(ctx, transaction.RiskLevelHigh, transaction.StatusBlocked, 1.0, time.Millisecond)
	c.RecordAssessment(ctx, transaction.RiskLevelLow, transaction.StatusProcessed, 0.1, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.assessmentsTotal.WithLabelValues("HIGH", "BLOCKED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.assessmentsTotal.WithLabelValues("LOW", "PROCESSED")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "risk.assessments" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestCollector_Counters(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordLookupDegraded(context.Background())
	c.RecordAlert(alert.PriorityHigh)
	c.RecordAlert(alert.PriorityHigh)
	c.RecordIngestError("csv")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookupDegraded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.alertsCreated.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ingestErrors.WithLabelValues("csv")))
}

func TestCollector_Handler(t *testing.T) {
	c, _ := newTestCollector(t)
	c.ObserveHTTP("GET", "/api/alerts", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `txmon_api_http_requests_total{method="GET",route="/api/alerts",status="200"} 1`)
}
