package risk

import (
	"context"
	"testing"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPipeline(t *testing.T, history HistoryLookup) *Pipeline {
	return NewPipeline(NewEvaluator(history, WithLogger(zaptest.NewLogger(t))), nil)
}

func TestPipeline_HighValueScenario(t *testing.T) {
	txn := newTxn(t, "15000")
	hour := 14
	txn.TimeOfDay = &hour
	txn.PhoneVerified = true
	txn.SocialProfilePresence = true

	assessment, a := newTestPipeline(t, nil).Apply(context.Background(), txn)

	assert.Equal(t, transaction.RuleFlags{HighValue: true}, assessment.Flags)
	assert.InDelta(t, 0.7, assessment.Result.Score, 1e-9)
	assert.Equal(t, transaction.RiskLevelMedium, assessment.Result.RiskLevel)
	assert.Equal(t, transaction.StatusFlagged, assessment.Status)
	assert.True(t, assessment.AlertRequired)

	require.NotNil(t, a)
	assert.Equal(t, alert.PriorityMedium, a.Priority)
	assert.Equal(t, alert.TypeRuleBased, a.AlertType)
	assert.Equal(t, "High-value transaction: $15000.00", a.Description)

	assert.Equal(t, transaction.StatusFlagged, txn.Status)
	assert.True(t, txn.AlertGenerated)
	assert.True(t, txn.HighValue)
}

func TestPipeline_CleanScenario(t *testing.T) {
	txn := newTxn(t, "200")
	hour := 14
	txn.TimeOfDay = &hour
	txn.TransactionVelocity = 1
	txn.PhoneVerified = true
	txn.SocialProfilePresence = true

	assessment, a := newTestPipeline(t, nil).Apply(context.Background(), txn)

	assert.False(t, assessment.Flags.Any())
	assert.InDelta(t, 0.1, assessment.Result.Score, 1e-9)
	assert.Equal(t, transaction.RiskLevelLow, assessment.Result.RiskLevel)
	assert.Equal(t, transaction.StatusProcessed, assessment.Status)
	assert.False(t, assessment.AlertRequired)
	assert.Nil(t, a)
	assert.False(t, txn.AlertGenerated)
}

func TestPipeline_ImpossibleTravelScenario(t *testing.T) {
	txn := newTxn(t, "200")
	hour := 14
	txn.TimeOfDay = &hour
	speed := 600.0
	txn.GeoVelocity = &speed
	txn.PhoneVerified = true
	txn.SocialProfilePresence = true

	assessment, a := newTestPipeline(t, nil).Apply(context.Background(), txn)

	assert.True(t, assessment.Flags.GeoVelocity)
	assert.InDelta(t, 0.95, assessment.Result.Score, 1e-9)
	assert.Equal(t, transaction.RiskLevelHigh, assessment.Result.RiskLevel)
	assert.Equal(t, transaction.StatusFlagged, assessment.Status)

	require.NotNil(t, a)
	assert.Equal(t, alert.PriorityHigh, a.Priority)
	assert.Equal(t, "Impossible travel pattern detected", a.Description)
}

func TestPipeline_Structuring(t *testing.T) {
	history := new(mockHistory)
	history.On("CountSimilarRecent", mock.Anything, "ACC-001", mock.Anything, mock.Anything, mock.Anything).Return(3, nil)

	txn := newTxn(t, "9800")
	hour := 11
	txn.TimeOfDay = &hour
	txn.PhoneVerified = true
	txn.SocialProfilePresence = true

	assessment, a := newTestPipeline(t, history).Apply(context.Background(), txn)

	assert.True(t, assessment.Flags.Structuring)
	assert.Equal(t, transaction.RiskLevelMedium, assessment.Result.RiskLevel)
	assert.Equal(t, transaction.StatusFlagged, assessment.Status)
	require.NotNil(t, a)
	assert.Equal(t, alert.PriorityHigh, a.Priority)
	assert.Equal(t, "Potential structuring pattern detected", a.Description)
}

func TestPipeline_ScoreOnlyStatuses(t *testing.T) {
	// Unverified, no social presence, night, fast: no rules fire.
	f := baseFeatures("700")
	f.PhoneVerified = false
	f.SocialProfilePresence = false
	f.TimeOfDay = 2
	f.TransactionVelocity = 11

	assessment := newTestPipeline(t, nil).Assess(context.Background(), f)
	assert.False(t, assessment.Flags.Any())
	assert.InDelta(t, 0.55, assessment.Result.Score, 1e-9)
	assert.Equal(t, transaction.StatusChallenged, assessment.Status)
	assert.True(t, assessment.AlertRequired)

	f.TransactionVelocity = 25
	f.FailedAttempts = 2
	assessment = newTestPipeline(t, nil).Assess(context.Background(), f)
	assert.Equal(t, transaction.StatusBlocked, assessment.Status)
}

func TestPipeline_Deterministic(t *testing.T) {
	p := newTestPipeline(t, nil)
	f := baseFeatures("12345.67")
	f.TimeOfDay = 23
	f.FailedAttempts = 2
	f.BillingCountry = "GB"
	f.IPCountry = "FR"

	first := p.Assess(context.Background(), f)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, p.Assess(context.Background(), f))
	}
}

func TestPipeline_RecordsAssessment(t *testing.T) {
	recorder := new(mockRecorder)
	recorder.On("RecordAssessment", mock.Anything, transaction.RiskLevelMedium, transaction.StatusFlagged, mock.AnythingOfType("float64"), mock.AnythingOfType("time.Duration")).Return().Once()

	p := NewPipeline(NewEvaluator(nil), recorder)
	f := baseFeatures("0")
	f.Amount = decimal.NewFromInt(15000)
	p.Assess(context.Background(), f)

	recorder.AssertExpectations(t)
}
