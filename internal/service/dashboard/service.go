package dashboard

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/cache"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
)

// DefaultMetricLimit applies when a metric listing gives no limit.
const DefaultMetricLimit = 100

type service struct {
	store    repository.Store
	cache    cache.Cache
	statsTTL time.Duration
	logger   *zap.Logger
}

// NewService creates the dashboard service. statsCache may be nil, in which
// case every Stats call reads the store.
func NewService(store repository.Store, statsCache cache.Cache, statsTTL time.Duration, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:    store,
		cache:    statsCache,
		statsTTL: statsTTL,
		logger:   logger,
	}
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	if s.cache != nil {
		var cached Stats
		err := s.cache.Load(ctx, cache.StatsKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.statsTTL > 0 {
		if err := s.cache.Store(ctx, cache.StatsKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *service) computeStats(ctx context.Context) (*Stats, error) {
	txnStats, err := s.store.Transactions().Stats(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading transaction stats")
	}
	counts, err := s.store.Alerts().CountActiveByPriority(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "counting active alerts")
	}
	latest, err := s.store.Metrics().Latest(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading latest metrics")
	}
	recent, err := s.store.Transactions().List(ctx, repository.Page{Limit: RecentLimit})
	if err != nil {
		return nil, domainerrors.Wrap(err, "loading recent transactions")
	}

	stats := &Stats{
		Metrics: make(map[string]string, len(latest)),
		AlertCounts: AlertCounts{
			High:   counts[alert.PriorityHigh],
			Medium: counts[alert.PriorityMedium],
			Low:    counts[alert.PriorityLow],
		},
		RiskDistribution: RiskDistribution{
			Low:    txnStats.RiskDistribution[transaction.RiskLevelLow],
			Medium: txnStats.RiskDistribution[transaction.RiskLevelMedium],
			High:   txnStats.RiskDistribution[transaction.RiskLevelHigh],
		},
		FlaggedTransactions: txnStats.Flagged,
		RecentTransactions:  recent,
	}
	stats.AlertCounts.Total = stats.AlertCounts.High + stats.AlertCounts.Medium + stats.AlertCounts.Low
	for _, m := range latest {
		stats.Metrics[m.MetricName] = m.MetricValue.String()
	}
	return stats, nil
}

func (s *service) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.StatsKey); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func (s *service) LatestMetrics(ctx context.Context) ([]*metric.SystemMetric, error) {
	return s.store.Metrics().Latest(ctx)
}

func (s *service) ListMetrics(ctx context.Context, name string, limit int) ([]*metric.SystemMetric, error) {
	if limit <= 0 {
		limit = DefaultMetricLimit
	}
	if limit > repository.MaxLimit {
		limit = repository.MaxLimit
	}
	return s.store.Metrics().List(ctx, name, limit)
}

func (s *service) RecordMetric(ctx context.Context, name string, value decimal.Decimal) (*metric.SystemMetric, error) {
	m, err := metric.New(name, value)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_METRIC", err.Error())
	}
	if err := s.store.Metrics().Record(ctx, m); err != nil {
		return nil, err
	}
	s.InvalidateStats(ctx)
	return m, nil
}

func (s *service) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.store.Metrics().Count(ctx)
	if err != nil {
		return 0, domainerrors.Wrap(err, "counting metrics")
	}
	if n > 0 {
		return 0, nil
	}

	defaults := metric.Defaults()
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m, err := metric.New(name, defaults[name])
		if err != nil {
			return 0, err
		}
		if err := s.store.Metrics().Record(ctx, m); err != nil {
			return 0, domainerrors.Wrap(err, "seeding metric "+name)
		}
	}

	s.logger.Info("seeded default system metrics", zap.Int("count", len(names)))
	s.InvalidateStats(ctx)
	return len(names), nil
}
