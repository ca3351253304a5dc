package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/metric"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/testutil/fixtures"
)

var contractBase = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// runStoreContract exercises behaviour every Store implementation must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("save and get round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		speed := 612.5
		hour := 3
		txn := fixtures.NewTransactionBuilder(t).
			WithAmount("15000.50").
			WithCreatedAt(contractBase).
			With(func(tx *transaction.Transaction) {
				tx.GeoVelocity = &speed
				tx.TimeOfDay = &hour
				tx.BillingCountry = "US"
				tx.IPCountry = "RU"
				tx.FailedAttempts = 2
			}).
			Build()
		txn.ApplyAssessment(
			transaction.RuleFlags{HighValue: true, GeoVelocity: true, IPMismatch: true},
			transaction.ScoreResult{Score: 1, RiskLevel: transaction.RiskLevelHigh, Confidence: 0.95,
				Attribution: transaction.Attribution{Amount: 0.3, Geo: 0.8, Device: 0.2, Time: 0.2, Identity: -0.05}},
			transaction.StatusFlagged, true)
		a := fixtures.NewAlert(t, txn, alert.PriorityHigh)

		require.NoError(t, store.Transactions().SaveScored(ctx, txn, a))

		got, err := store.Transactions().GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, txn.TransactionID, got.TransactionID)
		assert.True(t, txn.Amount.Equal(got.Amount))
		assert.Equal(t, transaction.RiskLevelHigh, got.RiskLevel)
		assert.Equal(t, transaction.StatusFlagged, got.Status)
		assert.True(t, got.AlertGenerated)
		assert.Equal(t, txn.RuleFlags, got.RuleFlags)
		assert.Equal(t, txn.Attribution, got.Attribution)
		require.NotNil(t, got.GeoVelocity)
		assert.InDelta(t, 612.5, *got.GeoVelocity, 0.001)
		require.NotNil(t, got.TimeOfDay)
		assert.Equal(t, 3, *got.TimeOfDay)
		assert.Equal(t, "RU", got.IPCountry)
		assert.Equal(t, transaction.ReviewPending, got.ReviewStatus)

		storedAlert, err := store.Alerts().GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, txn.ID, storedAlert.TransactionID)
		assert.Equal(t, alert.StatusActive, storedAlert.Status)
		assert.Equal(t, txn.TransactionID, storedAlert.Details["transactionId"])
	})

	t.Run("missing records", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Transactions().GetByID(ctx, uuid.New())
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeNotFound))

		_, err = store.Alerts().GetByID(ctx, uuid.New())
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeNotFound))

		_, err = store.Transactions().UpdateReviewStatus(ctx, uuid.New(), transaction.ReviewApproved)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeNotFound))

		err = store.Alerts().Update(ctx, alert.New(uuid.New(), alert.TypeMLBased, alert.PriorityLow, "x", nil), alert.StatusActive)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeNotFound))
	})

	t.Run("duplicate transaction id conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first := fixtures.NewTransactionBuilder(t).WithTransactionID("TXN-DUP").Build()
		second := fixtures.NewTransactionBuilder(t).WithTransactionID("TXN-DUP").Build()

		require.NoError(t, store.Transactions().SaveScored(ctx, first, nil))
		err := store.Transactions().SaveScored(ctx, second, fixtures.NewAlert(t, second, alert.PriorityLow))
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeConflict))

		alerts, err := store.Alerts().List(ctx, Page{})
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("lists newest first with filters and paging", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		specs := []struct {
			level   transaction.RiskLevel
			status  transaction.Status
			alerted bool
		}{
			{transaction.RiskLevelLow, transaction.StatusProcessed, false},
			{transaction.RiskLevelMedium, transaction.StatusFlagged, true},
			{transaction.RiskLevelHigh, transaction.StatusBlocked, true},
			{transaction.RiskLevelLow, transaction.StatusProcessed, false},
			{transaction.RiskLevelMedium, transaction.StatusChallenged, true},
		}
		ids := make([]uuid.UUID, len(specs))
		for i, s := range specs {
			txn := fixtures.NewTransactionBuilder(t).
				WithCreatedAt(contractBase.Add(time.Duration(i) * time.Minute)).
				WithRisk(s.level, s.status, s.alerted).
				Build()
			ids[i] = txn.ID
			require.NoError(t, store.Transactions().SaveScored(ctx, txn, nil))
		}

		all, err := store.Transactions().List(ctx, Page{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, ids[4], all[0].ID)
		assert.Equal(t, ids[0], all[4].ID)

		paged, err := store.Transactions().List(ctx, Page{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 2)
		assert.Equal(t, ids[3], paged[0].ID)
		assert.Equal(t, ids[2], paged[1].ID)

		beyond, err := store.Transactions().List(ctx, Page{Limit: 10, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, beyond)

		flagged, err := store.Transactions().ListFlagged(ctx, Page{})
		require.NoError(t, err)
		require.Len(t, flagged, 3)
		assert.Equal(t, ids[4], flagged[0].ID)

		medium, err := store.Transactions().ListByRiskLevel(ctx, transaction.RiskLevelMedium, Page{})
		require.NoError(t, err)
		require.Len(t, medium, 2)
		assert.Equal(t, ids[4], medium[0].ID)
		assert.Equal(t, ids[1], medium[1].ID)

		stats, err := store.Transactions().Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Total)
		assert.Equal(t, 3, stats.Flagged)
		assert.Equal(t, 2, stats.RiskDistribution[transaction.RiskLevelLow])
		assert.Equal(t, 2, stats.RiskDistribution[transaction.RiskLevelMedium])
		assert.Equal(t, 1, stats.RiskDistribution[transaction.RiskLevelHigh])
	})

	t.Run("review status update", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		txn := fixtures.NewTransactionBuilder(t).Build()
		require.NoError(t, store.Transactions().SaveScored(ctx, txn, nil))

		updated, err := store.Transactions().UpdateReviewStatus(ctx, txn.ID, transaction.ReviewApproved)
		require.NoError(t, err)
		assert.Equal(t, transaction.ReviewApproved, updated.ReviewStatus)

		got, err := store.Transactions().GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, transaction.ReviewApproved, got.ReviewStatus)
	})

	t.Run("count similar recent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		asOf := contractBase

		save := func(account, amount string, at time.Time) {
			txn := fixtures.NewTransactionBuilder(t).WithAccount(account).WithAmount(amount).WithTimestamp(at).Build()
			require.NoError(t, store.Transactions().SaveScored(ctx, txn, nil))
		}

		save("ACC-S", "9000.00", asOf.Add(-1*time.Hour))
		save("ACC-S", "9999.99", asOf.Add(-23*time.Hour))
		save("ACC-S", "9500.00", asOf.Add(-24*time.Hour))
		save("ACC-S", "10000.00", asOf.Add(-2*time.Hour))
		save("ACC-S", "8999.99", asOf.Add(-2*time.Hour))
		save("ACC-S", "9400.00", asOf.Add(-25*time.Hour))
		save("ACC-S", "9400.00", asOf.Add(time.Hour))
		save("ACC-OTHER", "9400.00", asOf.Add(-time.Hour))

		band := transaction.AmountBand{Lower: decimal.NewFromInt(9000), Upper: decimal.NewFromInt(10000)}
		count, err := store.Transactions().CountSimilarRecent(ctx, "ACC-S", band, 24*time.Hour, asOf)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = store.Transactions().CountSimilarRecent(ctx, "ACC-NONE", band, 24*time.Hour, asOf)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("alert lifecycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		priorities := []alert.Priority{alert.PriorityHigh, alert.PriorityMedium, alert.PriorityHigh, alert.PriorityLow}
		alerts := make([]*alert.Alert, len(priorities))
		for i, p := range priorities {
			txn := fixtures.NewTransactionBuilder(t).Build()
			a := fixtures.NewAlert(t, txn, p)
			a.CreatedAt = contractBase.Add(time.Duration(i) * time.Minute)
			alerts[i] = a
			require.NoError(t, store.Transactions().SaveScored(ctx, txn, a))
		}

		all, err := store.Alerts().List(ctx, Page{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, alerts[3].ID, all[0].ID)

		high, err := store.Alerts().ListByPriority(ctx, alert.PriorityHigh, Page{})
		require.NoError(t, err)
		assert.Len(t, high, 2)

		resolved := alerts[0]
		require.NoError(t, resolved.Assign("analyst-1"))
		require.NoError(t, resolved.Transition(alert.StatusResolved, contractBase.Add(time.Hour)))
		require.NoError(t, store.Alerts().Update(ctx, resolved, alert.StatusActive))

		got, err := store.Alerts().GetByID(ctx, resolved.ID)
		require.NoError(t, err)
		assert.Equal(t, alert.StatusResolved, got.Status)
		assert.Equal(t, "analyst-1", got.AssignedTo)
		require.NotNil(t, got.ResolvedAt)
		assert.WithinDuration(t, contractBase.Add(time.Hour), *got.ResolvedAt, time.Second)

		active, err := store.Alerts().ListActive(ctx, Page{})
		require.NoError(t, err)
		assert.Len(t, active, 3)

		counts, err := store.Alerts().CountActiveByPriority(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[alert.PriorityHigh])
		assert.Equal(t, 1, counts[alert.PriorityMedium])
		assert.Equal(t, 1, counts[alert.PriorityLow])
	})

	t.Run("alert update from a stale read conflicts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		txn := fixtures.NewTransactionBuilder(t).Build()
		require.NoError(t, store.Transactions().SaveScored(ctx, txn, fixtures.NewAlert(t, txn, alert.PriorityHigh)))
		stored, err := store.Alerts().ListActive(ctx, Page{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		id := stored[0].ID

		first, err := store.Alerts().GetByID(ctx, id)
		require.NoError(t, err)
		second, err := store.Alerts().GetByID(ctx, id)
		require.NoError(t, err)

		require.NoError(t, first.Transition(alert.StatusResolved, contractBase.Add(time.Hour)))
		require.NoError(t, second.Transition(alert.StatusDismissed, contractBase.Add(2*time.Hour)))

		require.NoError(t, store.Alerts().Update(ctx, first, alert.StatusActive))
		err = store.Alerts().Update(ctx, second, alert.StatusActive)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeConflict))

		got, err := store.Alerts().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, alert.StatusResolved, got.Status)
		require.NotNil(t, got.ResolvedAt)
		assert.WithinDuration(t, contractBase.Add(time.Hour), *got.ResolvedAt, time.Second)
	})

	t.Run("system metrics", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		record := func(name, value string, at time.Time) {
			m, err := metric.New(name, decimal.RequireFromString(value))
			require.NoError(t, err)
			m.Timestamp = at
			require.NoError(t, store.Metrics().Record(ctx, m))
		}

		record("model_accuracy", "0.9", contractBase)
		record("recall", "0.8", contractBase.Add(time.Minute))
		record("model_accuracy", "0.947", contractBase.Add(2*time.Minute))

		count, err := store.Metrics().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		latest, err := store.Metrics().Latest(ctx)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		byName := map[string]string{}
		for _, m := range latest {
			byName[m.MetricName] = m.MetricValue.String()
		}
		assert.Equal(t, "0.947", byName["model_accuracy"])
		assert.Equal(t, "0.8", byName["recall"])

		history, err := store.Metrics().List(ctx, "model_accuracy", 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "0.947", history[0].MetricValue.String())

		all, err := store.Metrics().List(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
