package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// TransactionBuilder builds test Transaction entities
type TransactionBuilder struct {
	t             *testing.T
	transactionID string
	accountID     string
	amount        decimal.Decimal
	timestamp     time.Time
	createdAt     time.Time
	modify        []func(*transaction.Transaction)
}

// NewTransactionBuilder creates a builder for a quiet daytime payment
func NewTransactionBuilder(t *testing.T) *TransactionBuilder {
	t.Helper()
	return &TransactionBuilder{
		t:             t,
		transactionID: "TXN-" + uuid.New().String()[:8],
		accountID:     "ACC-001",
		amount:        decimal.RequireFromString("250.00"),
		timestamp:     time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
	}
}

// WithTransactionID sets the external transaction id
func (b *TransactionBuilder) WithTransactionID(id string) *TransactionBuilder {
	b.transactionID = id
	return b
}

// WithAccount sets the account id
func (b *TransactionBuilder) WithAccount(accountID string) *TransactionBuilder {
	b.accountID = accountID
	return b
}

// WithAmount sets the amount from its decimal string
func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.amount = decimal.RequireFromString(amount)
	return b
}

// WithTimestamp sets the event time
func (b *TransactionBuilder) WithTimestamp(ts time.Time) *TransactionBuilder {
	b.timestamp = ts
	return b
}

// WithCreatedAt overrides the storage time, for ordering tests
func (b *TransactionBuilder) WithCreatedAt(ts time.Time) *TransactionBuilder {
	b.createdAt = ts
	return b
}

// WithRisk sets a precomputed assessment
func (b *TransactionBuilder) WithRisk(level transaction.RiskLevel, status transaction.Status, alerted bool) *TransactionBuilder {
	b.modify = append(b.modify, func(t *transaction.Transaction) {
		t.RiskLevel = level
		t.Status = status
		t.AlertGenerated = alerted
	})
	return b
}

// With applies an arbitrary change
func (b *TransactionBuilder) With(fn func(*transaction.Transaction)) *TransactionBuilder {
	b.modify = append(b.modify, fn)
	return b
}

// Build creates the Transaction
func (b *TransactionBuilder) Build() *transaction.Transaction {
	b.t.Helper()
	txn, err := transaction.New(b.transactionID, b.accountID, b.amount, b.timestamp)
	require.NoError(b.t, err)

	txn.PhoneVerified = true
	txn.SocialProfilePresence = true
	if !b.createdAt.IsZero() {
		txn.CreatedAt = b.createdAt
		txn.UpdatedAt = b.createdAt
	}
	for _, fn := range b.modify {
		fn(txn)
	}
	return txn
}

// NewAlert builds an ACTIVE alert for txn
func NewAlert(t *testing.T, txn *transaction.Transaction, priority alert.Priority) *alert.Alert {
	t.Helper()
	return alert.New(txn.ID, alert.TypeRuleBased, priority, "Transaction flagged for review", map[string]interface{}{
		"transactionId": txn.TransactionID,
		"amount":        txn.Amount.StringFixed(2),
	})
}
