package risk

import (
	"context"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// StructuringBand is the range just under the reporting threshold.
func StructuringBand() transaction.AmountBand {
	return transaction.AmountBand{Lower: StructuringLowerBound, Upper: StructuringUpperBound}
}

// HistoryLookup counts an account's stored transactions inside an amount band
// whose timestamps fall in [asOf-window, asOf].
type HistoryLookup interface {
	CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordAssessment(ctx context.Context, level transaction.RiskLevel, status transaction.Status, score float64, elapsed time.Duration)
	RecordLookupDegraded(ctx context.Context)
}

type nopRecorder struct{}

func (nopRecorder) RecordAssessment(context.Context, transaction.RiskLevel, transaction.Status, float64, time.Duration) {
}

func (nopRecorder) RecordLookupDegraded(context.Context) {}
