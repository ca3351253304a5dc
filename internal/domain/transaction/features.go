package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Features is the normalized input to one scoring invocation. Absent optional
// values are represented by their zero value, or nil for GeoVelocity, and never
// trigger a rule.
type Features struct {
	AccountID             string
	Amount                decimal.Decimal
	Timestamp             time.Time
	TransactionVelocity   int
	TimeOfDay             int
	GeoVelocity           *float64
	BillingCountry        string
	IPCountry             string
	FailedAttempts        int
	PhoneVerified         bool
	SocialProfilePresence bool
}

// RuleFlags holds the outcome of each threshold rule.
type RuleFlags struct {
	HighValue        bool `json:"highValueFlag"`
	Structuring      bool `json:"structuringFlag"`
	IPMismatch       bool `json:"ipMismatchFlag"`
	GeoVelocity      bool `json:"geoVelocityFlag"`
	MultipleFailures bool `json:"multipleFailuresFlag"`
}

// Any reports whether at least one rule fired.
func (f RuleFlags) Any() bool {
	return f.HighValue || f.Structuring || f.IPMismatch || f.GeoVelocity || f.MultipleFailures
}

// Attribution is a descriptive per-factor breakdown shown next to a score.
// The values do not sum to the score.
type Attribution struct {
	Amount   float64 `json:"amount"`
	Velocity float64 `json:"velocity"`
	Time     float64 `json:"time"`
	Geo      float64 `json:"geo"`
	Device   float64 `json:"device"`
	Identity float64 `json:"identity"`
}

// ScoreResult is the bounded score with its derived label.
type ScoreResult struct {
	Score       float64     `json:"score"`
	RiskLevel   RiskLevel   `json:"riskLevel"`
	Confidence  float64     `json:"confidence"`
	Attribution Attribution `json:"attribution"`
}

// AmountBand is a half-open amount range [Lower, Upper).
type AmountBand struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// Contains reports whether amount lies inside the band.
func (b AmountBand) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.Lower) && amount.LessThan(b.Upper)
}
