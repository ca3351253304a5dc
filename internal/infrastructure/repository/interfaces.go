package repository

import (
	"context"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/google/uuid"
)

// Paging defaults
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Page is a limit/offset window. Zero values select the defaults.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to supported bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// TransactionRepository stores scored transactions.
type TransactionRepository interface {
	// SaveScored stores the transaction and, when non-nil, its alert in one unit.
	SaveScored(ctx context.Context, txn *transaction.Transaction, a *alert.Alert) error
	// GetByID returns a transaction by its internal id
	GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	// List returns transactions newest first
	List(ctx context.Context, page Page) ([]*transaction.Transaction, error)
	// ListFlagged returns FLAGGED or alerted transactions newest first
	ListFlagged(ctx context.Context, page Page) ([]*transaction.Transaction, error)
	// ListByRiskLevel returns transactions at one risk level newest first
	ListByRiskLevel(ctx context.Context, level transaction.RiskLevel, page Page) ([]*transaction.Transaction, error)
	// UpdateReviewStatus sets the analyst review status
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error)
	// CountSimilarRecent counts an account's transactions in band within [asOf-window, asOf]
	CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error)
	// Stats aggregates counts for the dashboard
	Stats(ctx context.Context) (*TransactionStats, error)
}

// TransactionStats is the dashboard aggregate over stored transactions.
type TransactionStats struct {
	Total            int
	Flagged          int
	RiskDistribution map[transaction.RiskLevel]int
}

// AlertRepository stores alerts raised by the pipeline.
type AlertRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*alert.Alert, error)
	List(ctx context.Context, page Page) ([]*alert.Alert, error)
	ListActive(ctx context.Context, page Page) ([]*alert.Alert, error)
	ListByPriority(ctx context.Context, priority alert.Priority, page Page) ([]*alert.Alert, error)
	// Update persists status, assignee and resolution time, provided the
	// stored status still equals from. Otherwise it returns a conflict error
	// and leaves the alert untouched.
	Update(ctx context.Context, a *alert.Alert, from alert.Status) error
	// CountActiveByPriority counts ACTIVE alerts per priority
	CountActiveByPriority(ctx context.Context) (map[alert.Priority]int, error)
}

// MetricRepository stores system metric samples.
type MetricRepository interface {
	Record(ctx context.Context, m *metric.SystemMetric) error
	// List returns samples newest first, optionally for one name
	List(ctx context.Context, name string, limit int) ([]*metric.SystemMetric, error)
	// Latest returns the most recent sample of every metric name
	Latest(ctx context.Context) ([]*metric.SystemMetric, error)
	Count(ctx context.Context) (int, error)
}

// Store bundles the repositories over one backend.
type Store interface {
	Transactions() TransactionRepository
	Alerts() AlertRepository
	Metrics() MetricRepository
	Ping(ctx context.Context) error
	Close()
}
