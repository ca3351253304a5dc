package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/events"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
	"github.com/davidleathers/transaction-monitor/internal/service/risk"
)

var baseTime = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	svc       Service
	store     *repository.MemoryStore
	publisher *recordingPublisher
	notifier  *channelNotifier
	history   *recordingHistory
	listener  *countingListener
}

func newFixture(t *testing.T, mutate ...func(*Dependencies)) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		notifier:  &channelNotifier{sent: make(chan *alert.Alert, 16)},
		history:   &recordingHistory{},
		listener:  &countingListener{},
	}

	deps := Dependencies{
		Store:     store.Transactions(),
		Pipeline:  risk.NewPipeline(risk.NewEvaluator(store.Transactions(), risk.WithLogger(logger)), nil),
		Publisher: f.publisher,
		Notifier:  f.notifier,
		History:   f.history,
		Listener:  f.listener,
		Logger:    logger,
		Workers:   4,
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func record(id, account, amount string) Record {
	return Record{
		TransactionID:         id,
		AccountID:             account,
		Amount:                decimal.RequireFromString(amount),
		Timestamp:             baseTime,
		PhoneVerified:         true,
		SocialProfilePresence: true,
	}
}

func TestIngest_LowRisk(t *testing.T) {
	f := newFixture(t)

	scored, err := f.svc.Ingest(context.Background(), record("TXN-1", "ACC-1", "250.00"))
	require.NoError(t, err)
	require.Nil(t, scored.Alert)

	txn := scored.Transaction
	assert.Equal(t, transaction.StatusProcessed, txn.Status)
	assert.Equal(t, transaction.RiskLevelLow, txn.RiskLevel)
	assert.False(t, txn.AlertGenerated)
	assert.Equal(t, "USD", txn.Currency)
	require.NotNil(t, txn.TimeOfDay)
	assert.Equal(t, 14, *txn.TimeOfDay)

	stored, err := f.store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", stored.TransactionID)

	assert.Equal(t, []events.Type{events.TypeTransactionScored}, f.publisher.types())
	assert.Equal(t, []string{"TXN-1"}, f.history.ids)
	assert.Equal(t, 1, f.listener.calls)
}

func TestIngest_HighValueRaisesAlert(t *testing.T) {
	metrics := &mockMetrics{}
	metrics.On("RecordAlert", alert.PriorityMedium).Once()
	f := newFixture(t, func(d *Dependencies) { d.Metrics = metrics })

	scored, err := f.svc.Ingest(context.Background(), record("TXN-HV", "ACC-1", "15000"))
	require.NoError(t, err)
	require.NotNil(t, scored.Alert)

	assert.True(t, scored.Transaction.HighValue)
	assert.Equal(t, transaction.StatusFlagged, scored.Transaction.Status)
	assert.Equal(t, "High-value transaction: $15000.00", scored.Alert.Description)

	stored, err := f.store.Alerts().GetByID(context.Background(), scored.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, scored.Transaction.ID, stored.TransactionID)

	assert.Equal(t, []events.Type{events.TypeTransactionScored, events.TypeAlertCreated}, f.publisher.types())

	select {
	case a := <-f.notifier.sent:
		assert.Equal(t, scored.Alert.ID, a.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}
	metrics.AssertExpectations(t)
}

func TestIngest_GeoIPEnrichment(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) {
		d.Geo = fakeResolver{"203.0.113.7": "RU"}
	})

	rec := record("TXN-GEO", "ACC-1", "120.00")
	rec.IPAddress = "203.0.113.7"
	rec.BillingCountry = "us"

	scored, err := f.svc.Ingest(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "RU", scored.Transaction.IPCountry)
	assert.Equal(t, "US", scored.Transaction.BillingCountry)
	assert.True(t, scored.Transaction.IPMismatch)

	rec = record("TXN-GEO-2", "ACC-1", "120.00")
	rec.IPAddress = "198.51.100.1"
	scored, err = f.svc.Ingest(context.Background(), rec)
	require.NoError(t, err)
	assert.Empty(t, scored.Transaction.IPCountry)
}

func TestIngest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		field  string
	}{
		{"missing transaction id", func(r *Record) { r.TransactionID = " " }, "transactionId"},
		{"missing account", func(r *Record) { r.AccountID = "" }, "accountId"},
		{"zero amount", func(r *Record) { r.Amount = decimal.Zero }, "amount"},
		{"sub-cent amount", func(r *Record) { r.Amount = decimal.RequireFromString("0.001") }, "amount"},
		{"missing timestamp", func(r *Record) { r.Timestamp = time.Time{} }, "timestamp"},
		{"bad type", func(r *Record) { r.TransactionType = "refund" }, "transactionType"},
		{"bad ip", func(r *Record) { r.IPAddress = "not-an-ip" }, "ipAddress"},
		{"hour out of range", func(r *Record) { h := 30; r.TimeOfDay = &h }, "timeOfDay"},
		{"negative failures", func(r *Record) { r.FailedAttempts = -1 }, "failedAttempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &mockMetrics{}
			metrics.On("RecordIngestError", SourceAPI).Once()
			f := newFixture(t, func(d *Dependencies) { d.Metrics = metrics })

			rec := record("TXN-V", "ACC-1", "10")
			tt.mutate(&rec)

			_, err := f.svc.Ingest(context.Background(), rec)
			require.Error(t, err)
			assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeValidation))

			appErr, ok := domainerrors.As(err)
			require.True(t, ok)
			assert.Contains(t, appErr.Details, tt.field)

			assert.Empty(t, f.publisher.types())
			metrics.AssertExpectations(t)
		})
	}
}

func TestIngest_DuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, record("TXN-DUP", "ACC-1", "10"))
	require.NoError(t, err)

	_, err = f.svc.Ingest(ctx, record("TXN-DUP", "ACC-1", "10"))
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeConflict))
}

func TestIngest_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Publisher = failingPublisher{} })

	_, err := f.svc.Ingest(context.Background(), record("TXN-P", "ACC-1", "10"))
	assert.NoError(t, err)
}

func TestIngestBatch_CollectsRowErrors(t *testing.T) {
	metrics := &mockMetrics{}
	metrics.On("RecordIngestError", SourceBatch).Twice()
	metrics.On("RecordAlert", mock.Anything).Maybe()
	f := newFixture(t, func(d *Dependencies) { d.Metrics = metrics })

	bad := record("TXN-B2", "", "10")
	records := []Record{
		record("TXN-B1", "ACC-1", "10"),
		bad,
		record("TXN-B3", "ACC-2", "15000"),
		record("TXN-B1", "ACC-1", "20"),
	}

	result := f.svc.IngestBatch(context.Background(), records)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Alerts)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].RowIndex)
	assert.Contains(t, result.Errors[0].ErrorMessage, "accountId")
	assert.Equal(t, bad, result.Errors[0].RawData)
	assert.Equal(t, 4, result.Errors[1].RowIndex)
	assert.Contains(t, result.Errors[1].ErrorMessage, "already exists")

	assert.Equal(t, 1, f.listener.calls)
	metrics.AssertExpectations(t)
}

func TestIngestBatch_StructuringWithinBatch(t *testing.T) {
	f := newFixture(t)

	var records []Record
	for i, amount := range []string{"9100", "9200", "9300", "9400"} {
		rec := record("TXN-S"+string(rune('1'+i)), "ACC-STRUCT", amount)
		rec.Timestamp = baseTime.Add(time.Duration(i) * 10 * time.Minute)
		records = append(records, rec)
	}
	records = append(records, record("TXN-OTHER", "ACC-OTHER", "50"))

	result := f.svc.IngestBatch(context.Background(), records)
	require.Empty(t, result.Errors)
	assert.Equal(t, 5, result.Processed)

	all, err := f.store.Transactions().List(context.Background(), repository.Page{})
	require.NoError(t, err)

	structured := map[string]bool{}
	for _, txn := range all {
		structured[txn.TransactionID] = txn.Structuring
	}
	assert.False(t, structured["TXN-S1"])
	assert.False(t, structured["TXN-S2"])
	assert.False(t, structured["TXN-S3"])
	assert.True(t, structured["TXN-S4"])
	assert.False(t, structured["TXN-OTHER"])
}

func TestIngestBatch_PaddedAccountIDsShareHistory(t *testing.T) {
	f := newFixture(t)

	var records []Record
	for i, account := range []string{"ACC-PAD", " ACC-PAD", "ACC-PAD ", "\tACC-PAD"} {
		rec := record("TXN-P"+string(rune('1'+i)), account, "9500")
		rec.Timestamp = baseTime.Add(time.Duration(i) * time.Minute)
		records = append(records, rec)
	}

	result := f.svc.IngestBatch(context.Background(), records)
	require.Empty(t, result.Errors)

	all, err := f.store.Transactions().List(context.Background(), repository.Page{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for _, txn := range all {
		assert.Equal(t, "ACC-PAD", txn.AccountID)
		assert.Equal(t, txn.TransactionID == "TXN-P4", txn.Structuring, txn.TransactionID)
	}
}

func TestIngestBatch_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.svc.IngestBatch(ctx, []Record{record("TXN-C1", "ACC-1", "10"), record("TXN-C2", "ACC-2", "10")})
	assert.Zero(t, result.Processed)
	assert.Len(t, result.Errors, 2)
	assert.Zero(t, f.listener.calls)
}

func TestIngestBatch_Empty(t *testing.T) {
	f := newFixture(t)
	result := f.svc.IngestBatch(context.Background(), nil)
	assert.Zero(t, result.TotalRows)
	assert.NotNil(t, result.Errors)
}
