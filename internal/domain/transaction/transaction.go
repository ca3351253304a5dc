package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a stored, scored payment event.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	TransactionID   string          `json:"transactionId"`
	AccountID       string          `json:"accountId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionType Type            `json:"transactionType,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`

	// Monetary and temporal features
	TransactionVelocity      int              `json:"transactionVelocity"`
	AvgTicketSize            *decimal.Decimal `json:"avgTicketSize,omitempty"`
	TimeOfDay                *int             `json:"timeOfDay,omitempty"`
	InterTransactionInterval *int             `json:"interTransactionInterval,omitempty"`
	DayNightRatio            *float64         `json:"dayNightRatio,omitempty"`

	// Location and channel
	IPAddress        string   `json:"ipAddress,omitempty"`
	IPCountry        string   `json:"ipCountry,omitempty"`
	BillingCountry   string   `json:"billingCountry,omitempty"`
	GeoVelocity      *float64 `json:"geoVelocity,omitempty"`
	MerchantName     string   `json:"merchantName,omitempty"`
	MerchantCategory string   `json:"merchantCategory,omitempty"`
	Location         string   `json:"location,omitempty"`

	// Device and identity
	DeviceFingerprint     string `json:"deviceFingerprint,omitempty"`
	FailedAttempts        int    `json:"failedAttempts"`
	EmailAge              *int   `json:"emailAge,omitempty"`
	EmailDomain           string `json:"emailDomain,omitempty"`
	PhoneVerified         bool   `json:"phoneVerified"`
	SocialProfilePresence bool   `json:"socialProfilePresence"`

	// Assessment
	MLScore     float64     `json:"mlScore"`
	RiskLevel   RiskLevel   `json:"riskLevel"`
	Confidence  float64     `json:"confidence"`
	Attribution Attribution `json:"attribution"`
	RuleFlags

	Status         Status       `json:"status"`
	AlertGenerated bool         `json:"alertGenerated"`
	ReviewStatus   ReviewStatus `json:"reviewStatus"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates an unscored transaction with required fields checked.
func New(transactionID, accountID string, amount decimal.Decimal, ts time.Time) (*Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	accountID = strings.TrimSpace(accountID)

	if transactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	// Amounts are stored to the cent, so positivity is checked after rounding.
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be at least 0.01, got %s", amount)
	}
	if ts.IsZero() {
		return nil, fmt.Errorf("timestamp is required")
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:            uuid.New(),
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Currency:      "USD",
		Timestamp:     ts.UTC(),
		RiskLevel:     RiskLevelLow,
		Status:        StatusProcessed,
		ReviewStatus:  ReviewPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Features extracts the scoring input. A missing time of day falls back to the
// UTC hour of the transaction timestamp.
func (t *Transaction) Features() Features {
	hour := t.Timestamp.UTC().Hour()
	if t.TimeOfDay != nil {
		hour = *t.TimeOfDay
	}

	return Features{
		AccountID:             t.AccountID,
		Amount:                t.Amount,
		Timestamp:             t.Timestamp,
		TransactionVelocity:   t.TransactionVelocity,
		TimeOfDay:             hour,
		GeoVelocity:           t.GeoVelocity,
		BillingCountry:        t.BillingCountry,
		IPCountry:             t.IPCountry,
		FailedAttempts:        t.FailedAttempts,
		PhoneVerified:         t.PhoneVerified,
		SocialProfilePresence: t.SocialProfilePresence,
	}
}

// ApplyAssessment records the pipeline outcome on the transaction.
func (t *Transaction) ApplyAssessment(flags RuleFlags, result ScoreResult, status Status, alertGenerated bool) {
	t.RuleFlags = flags
	t.MLScore = result.Score
	t.RiskLevel = result.RiskLevel
	t.Confidence = result.Confidence
	t.Attribution = result.Attribution
	t.Status = status
	t.AlertGenerated = alertGenerated
	t.UpdatedAt = time.Now().UTC()
}

// SetReviewStatus records an analyst decision.
func (t *Transaction) SetReviewStatus(status ReviewStatus) {
	t.ReviewStatus = status
	t.UpdatedAt = time.Now().UTC()
}

// IsFlagged reports whether the transaction belongs on the flagged list.
func (t *Transaction) IsFlagged() bool {
	return t.Status == StatusFlagged || t.AlertGenerated
}
