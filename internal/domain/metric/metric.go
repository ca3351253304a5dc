package metric

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemMetric is one recorded value of a named system indicator.
type SystemMetric struct {
	ID          uuid.UUID       `json:"id"`
	MetricName  string          `json:"metricName"`
	MetricValue decimal.Decimal `json:"metricValue"`
	Timestamp   time.Time       `json:"timestamp"`
}

// New stamps a metric value with the current time. Values keep four decimal places.
func New(name string, value decimal.Decimal) (*SystemMetric, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("metric name is required")
	}
	return &SystemMetric{
		ID:          uuid.New(),
		MetricName:  name,
		MetricValue: value.Round(4),
		Timestamp:   time.Now().UTC(),
	}, nil
}

// Defaults are the indicators shown on a fresh dashboard.
func Defaults() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"transactions_today":   decimal.NewFromInt(47829),
		"flagged_transactions": decimal.NewFromInt(127),
		"model_accuracy":       decimal.RequireFromString("0.947"),
		"avg_detection_time":   decimal.RequireFromString("2.3"),
		"precision":            decimal.RequireFromString("0.872"),
		"recall":               decimal.RequireFromString("0.928"),
		"roc_auc":              decimal.RequireFromString("0.96"),
		"false_positive_rate":  decimal.RequireFromString("0.018"),
	}
}
