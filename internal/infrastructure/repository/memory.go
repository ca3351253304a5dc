package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*transaction.Transaction
	externalIDs  map[string]uuid.UUID
	alerts       map[uuid.UUID]*alert.Alert
	metrics      []*metric.SystemMetric
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[uuid.UUID]*transaction.Transaction),
		externalIDs:  make(map[string]uuid.UUID),
		alerts:       make(map[uuid.UUID]*alert.Alert),
	}
}

func (s *MemoryStore) Transactions() TransactionRepository { return memoryTransactions{s} }
func (s *MemoryStore) Alerts() AlertRepository             { return memoryAlerts{s} }
func (s *MemoryStore) Metrics() MetricRepository           { return memoryMetrics{s} }
func (s *MemoryStore) Ping(context.Context) error          { return nil }
func (s *MemoryStore) Close()                              {}

type memoryTransactions struct{ s *MemoryStore }

func (r memoryTransactions) SaveScored(ctx context.Context, txn *transaction.Transaction, a *alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.externalIDs[txn.TransactionID]; exists {
		return domainerrors.NewConflictError(fmt.Sprintf("transaction %s already exists", txn.TransactionID))
	}
	if _, exists := r.s.transactions[txn.ID]; exists {
		return domainerrors.NewConflictError(fmt.Sprintf("transaction %s already exists", txn.ID))
	}
	if a != nil && a.TransactionID != txn.ID {
		return domainerrors.NewValidationError("INVALID_REFERENCE", "alert does not belong to transaction")
	}

	stored := *txn
	r.s.transactions[txn.ID] = &stored
	r.s.externalIDs[txn.TransactionID] = txn.ID

	if a != nil {
		storedAlert := copyAlert(a)
		r.s.alerts[a.ID] = storedAlert
	}
	return nil
}

func (r memoryTransactions) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	txn, ok := r.s.transactions[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("transaction")
	}
	out := *txn
	return &out, nil
}

func (r memoryTransactions) List(_ context.Context, page Page) ([]*transaction.Transaction, error) {
	return r.filter(page, func(*transaction.Transaction) bool { return true }), nil
}

func (r memoryTransactions) ListFlagged(_ context.Context, page Page) ([]*transaction.Transaction, error) {
	return r.filter(page, (*transaction.Transaction).IsFlagged), nil
}

func (r memoryTransactions) ListByRiskLevel(_ context.Context, level transaction.RiskLevel, page Page) ([]*transaction.Transaction, error) {
	return r.filter(page, func(t *transaction.Transaction) bool { return t.RiskLevel == level }), nil
}

func (r memoryTransactions) filter(page Page, keep func(*transaction.Transaction) bool) []*transaction.Transaction {
	page = page.Normalize()

	r.s.mu.RLock()
	matched := make([]*transaction.Transaction, 0, len(r.s.transactions))
	for _, t := range r.s.transactions {
		if keep(t) {
			out := *t
			matched = append(matched, &out)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, page)
}

func (r memoryTransactions) UpdateReviewStatus(_ context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	txn, ok := r.s.transactions[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("transaction")
	}
	txn.SetReviewStatus(status)
	out := *txn
	return &out, nil
}

func (r memoryTransactions) CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	from := asOf.Add(-window)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, t := range r.s.transactions {
		if t.AccountID != accountID || !band.Contains(t.Amount) {
			continue
		}
		if t.Timestamp.Before(from) || t.Timestamp.After(asOf) {
			continue
		}
		count++
	}
	return count, nil
}

func (r memoryTransactions) Stats(context.Context) (*TransactionStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &TransactionStats{
		Total: len(r.s.transactions),
		RiskDistribution: map[transaction.RiskLevel]int{
			transaction.RiskLevelLow:    0,
			transaction.RiskLevelMedium: 0,
			transaction.RiskLevelHigh:   0,
		},
	}
	for _, t := range r.s.transactions {
		stats.RiskDistribution[t.RiskLevel]++
		if t.IsFlagged() {
			stats.Flagged++
		}
	}
	return stats, nil
}

type memoryAlerts struct{ s *MemoryStore }

func (r memoryAlerts) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.alerts[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("alert")
	}
	return copyAlert(a), nil
}

func (r memoryAlerts) List(_ context.Context, page Page) ([]*alert.Alert, error) {
	return r.filter(page, func(*alert.Alert) bool { return true }), nil
}

func (r memoryAlerts) ListActive(_ context.Context, page Page) ([]*alert.Alert, error) {
	return r.filter(page, func(a *alert.Alert) bool { return a.Status == alert.StatusActive }), nil
}

func (r memoryAlerts) ListByPriority(_ context.Context, priority alert.Priority, page Page) ([]*alert.Alert, error) {
	return r.filter(page, func(a *alert.Alert) bool { return a.Priority == priority }), nil
}

func (r memoryAlerts) filter(page Page, keep func(*alert.Alert) bool) []*alert.Alert {
	page = page.Normalize()

	r.s.mu.RLock()
	matched := make([]*alert.Alert, 0, len(r.s.alerts))
	for _, a := range r.s.alerts {
		if keep(a) {
			matched = append(matched, copyAlert(a))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, page)
}

func (r memoryAlerts) Update(_ context.Context, a *alert.Alert, from alert.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.alerts[a.ID]
	if !ok {
		return domainerrors.NewNotFoundError("alert")
	}
	if stored.Status != from {
		return errAlertChanged(from)
	}
	r.s.alerts[a.ID] = copyAlert(a)
	return nil
}

func (r memoryAlerts) CountActiveByPriority(context.Context) (map[alert.Priority]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[alert.Priority]int{
		alert.PriorityHigh:   0,
		alert.PriorityMedium: 0,
		alert.PriorityLow:    0,
	}
	for _, a := range r.s.alerts {
		if a.Status == alert.StatusActive {
			counts[a.Priority]++
		}
	}
	return counts, nil
}

type memoryMetrics struct{ s *MemoryStore }

func (r memoryMetrics) Record(_ context.Context, m *metric.SystemMetric) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *m
	r.s.metrics = append(r.s.metrics, &stored)
	return nil
}

func (r memoryMetrics) List(_ context.Context, name string, limit int) ([]*metric.SystemMetric, error) {
	if limit <= 0 {
		limit = 100
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*metric.SystemMetric, 0, limit)
	for i := len(r.s.metrics) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.s.metrics[i]
		if name != "" && m.MetricName != name {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (r memoryMetrics) Latest(context.Context) ([]*metric.SystemMetric, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	latest := make(map[string]*metric.SystemMetric)
	for _, m := range r.s.metrics {
		if cur, ok := latest[m.MetricName]; !ok || !m.Timestamp.Before(cur.Timestamp) {
			latest[m.MetricName] = m
		}
	}

	out := make([]*metric.SystemMetric, 0, len(latest))
	for _, m := range latest {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricName < out[j].MetricName })
	return out, nil
}

func (r memoryMetrics) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.metrics), nil
}

func copyAlert(a *alert.Alert) *alert.Alert {
	out := *a
	if a.ResolvedAt != nil {
		resolved := *a.ResolvedAt
		out.ResolvedAt = &resolved
	}
	return &out
}

func window[T any](items []T, page Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
