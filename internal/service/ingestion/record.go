package ingestion

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// Record is one raw transaction as submitted through the API, a JSON batch or
// a CSV row.
type Record struct {
	TransactionID   string          `json:"transactionId" validate:"required,max=100"`
	AccountID       string          `json:"accountId" validate:"required,max=100"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	TransactionType string          `json:"transactionType,omitempty" validate:"omitempty,oneof=DEPOSIT WITHDRAWAL TRANSFER PAYMENT"`
	Timestamp       time.Time       `json:"timestamp" validate:"required"`

	TransactionVelocity      int              `json:"transactionVelocity,omitempty" validate:"gte=0"`
	AvgTicketSize            *decimal.Decimal `json:"avgTicketSize,omitempty" validate:"omitempty,gte=0"`
	TimeOfDay                *int             `json:"timeOfDay,omitempty" validate:"omitempty,gte=0,lte=23"`
	InterTransactionInterval *int             `json:"interTransactionInterval,omitempty" validate:"omitempty,gte=0"`
	DayNightRatio            *float64         `json:"dayNightRatio,omitempty" validate:"omitempty,gte=0"`

	IPAddress        string   `json:"ipAddress,omitempty" validate:"omitempty,ip"`
	IPCountry        string   `json:"ipCountry,omitempty" validate:"omitempty,len=2,alpha"`
	BillingCountry   string   `json:"billingCountry,omitempty" validate:"omitempty,len=2,alpha"`
	GeoVelocity      *float64 `json:"geoVelocity,omitempty" validate:"omitempty,gte=0"`
	MerchantName     string   `json:"merchantName,omitempty" validate:"max=255"`
	MerchantCategory string   `json:"merchantCategory,omitempty" validate:"max=100"`
	Location         string   `json:"location,omitempty" validate:"max=255"`

	DeviceFingerprint     string `json:"deviceFingerprint,omitempty" validate:"max=255"`
	FailedAttempts        int    `json:"failedAttempts,omitempty" validate:"gte=0"`
	EmailAge              *int   `json:"emailAge,omitempty" validate:"omitempty,gte=0"`
	EmailDomain           string `json:"emailDomain,omitempty" validate:"max=255"`
	PhoneVerified         bool   `json:"phoneVerified,omitempty"`
	SocialProfilePresence bool   `json:"socialProfilePresence,omitempty"`
}

// normalize upper-cases codes and rounds the amount to cents so validation
// and storage see canonical values.
func (r *Record) normalize() {
	r.Amount = r.Amount.Round(2)
	r.TransactionID = strings.TrimSpace(r.TransactionID)
	r.AccountID = strings.TrimSpace(r.AccountID)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.TransactionType = strings.ToUpper(strings.TrimSpace(r.TransactionType))
	r.IPAddress = strings.TrimSpace(r.IPAddress)
	r.IPCountry = strings.ToUpper(strings.TrimSpace(r.IPCountry))
	r.BillingCountry = strings.ToUpper(strings.TrimSpace(r.BillingCountry))
}

// toTransaction builds the unscored entity. The record must already be valid.
func (r *Record) toTransaction() (*transaction.Transaction, error) {
	txn, err := transaction.New(r.TransactionID, r.AccountID, r.Amount, r.Timestamp)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_TRANSACTION", err.Error())
	}

	if r.Currency != "" {
		txn.Currency = r.Currency
	}
	txn.TransactionType = transaction.Type(r.TransactionType)
	txn.TransactionVelocity = r.TransactionVelocity
	txn.AvgTicketSize = r.AvgTicketSize
	txn.TimeOfDay = r.TimeOfDay
	txn.InterTransactionInterval = r.InterTransactionInterval
	txn.DayNightRatio = r.DayNightRatio
	txn.IPAddress = r.IPAddress
	txn.IPCountry = r.IPCountry
	txn.BillingCountry = r.BillingCountry
	txn.GeoVelocity = r.GeoVelocity
	txn.MerchantName = r.MerchantName
	txn.MerchantCategory = r.MerchantCategory
	txn.Location = r.Location
	txn.DeviceFingerprint = r.DeviceFingerprint
	txn.FailedAttempts = r.FailedAttempts
	txn.EmailAge = r.EmailAge
	txn.EmailDomain = r.EmailDomain
	txn.PhoneVerified = r.PhoneVerified
	txn.SocialProfilePresence = r.SocialProfilePresence

	if txn.TimeOfDay == nil {
		hour := txn.Timestamp.Hour()
		txn.TimeOfDay = &hour
	}
	return txn, nil
}
