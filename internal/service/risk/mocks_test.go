package risk

import (
	"context"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error) {
	args := m.Called(ctx, accountID, band, window, asOf)
	return args.Int(0), args.Error(1)
}

// blockingHistory waits for the caller's deadline.
type blockingHistory struct{}

func (blockingHistory) CountSimilarRecent(ctx context.Context, _ string, _ transaction.AmountBand, _ time.Duration, _ time.Time) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordAssessment(ctx context.Context, level transaction.RiskLevel, status transaction.Status, score float64, elapsed time.Duration) {
	m.Called(ctx, level, status, score, elapsed)
}

func (m *mockRecorder) RecordLookupDegraded(ctx context.Context) {
	m.Called(ctx)
}
