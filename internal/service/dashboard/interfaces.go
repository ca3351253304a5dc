package dashboard

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// RecentLimit is the number of transactions shown on the dashboard.
const RecentLimit = 10

// Service is the read side of the dashboard and analytics pages.
type Service interface {
	// Stats returns the dashboard aggregate, from cache when fresh
	Stats(ctx context.Context) (*Stats, error)
	// InvalidateStats drops the cached aggregate
	InvalidateStats(ctx context.Context)

	LatestMetrics(ctx context.Context) ([]*metric.SystemMetric, error)
	ListMetrics(ctx context.Context, name string, limit int) ([]*metric.SystemMetric, error)
	RecordMetric(ctx context.Context, name string, value decimal.Decimal) (*metric.SystemMetric, error)
	// SeedDefaults records the default indicators when none exist yet
	SeedDefaults(ctx context.Context) (int, error)
}

// Stats is the dashboard aggregate.
type Stats struct {
	Metrics             map[string]string          `json:"metrics"`
	AlertCounts         AlertCounts                `json:"alertCounts"`
	RiskDistribution    RiskDistribution           `json:"riskDistribution"`
	FlaggedTransactions int                        `json:"flaggedTransactions"`
	RecentTransactions  []*transaction.Transaction `json:"recentTransactions"`
}

// AlertCounts counts active alerts by priority.
type AlertCounts struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}
