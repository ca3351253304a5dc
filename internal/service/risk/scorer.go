package risk

import (
	"math"

	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// Score derives the bounded risk score from features and flags. Triggered
// rules raise the score to their floor, then feature adjustments are added
// and the result is clamped to [0, 1].
func Score(f transaction.Features, flags transaction.RuleFlags) transaction.ScoreResult {
	score := BaseScore

	if flags.HighValue {
		score = math.Max(score, FloorHighValue)
	}
	if flags.Structuring {
		score = math.Max(score, FloorStructuring)
	}
	if flags.GeoVelocity {
		score = math.Max(score, FloorGeoVelocity)
	}
	if flags.IPMismatch {
		score = math.Max(score, FloorIPMismatch)
	}
	if flags.MultipleFailures {
		score = math.Max(score, FloorMultipleFailures)
	}

	if f.Amount.GreaterThan(LargeAmountThreshold) {
		score += AdjustLargeAmount
	}
	if f.Amount.GreaterThan(VeryLargeAmountThreshold) {
		score += AdjustVeryLargeAmount
	}
	if f.TransactionVelocity > HighVelocityCount {
		score += AdjustHighVelocity
	}
	if f.TransactionVelocity > VeryHighVelocityCount {
		score += AdjustVeryHighVelocity
	}
	if isOffHours(f.TimeOfDay) {
		score += AdjustOffHours
	}
	score += float64(f.FailedAttempts) * AdjustPerFailedAttempt
	if !f.PhoneVerified {
		score += AdjustPhoneUnverified
	}
	if !f.SocialProfilePresence {
		score += AdjustNoSocialPresence
	}

	score = clamp(score)

	return transaction.ScoreResult{
		Score:       score,
		RiskLevel:   transaction.RiskLevelFromScore(score),
		Confidence:  math.Min(ConfidenceCap, ConfidenceBase+score*ConfidenceSlope),
		Attribution: Attribute(f, flags),
	}
}

// Attribute builds the descriptive per-factor breakdown. It is independent of
// the score arithmetic.
func Attribute(f transaction.Features, flags transaction.RuleFlags) transaction.Attribution {
	var a transaction.Attribution

	switch {
	case f.Amount.GreaterThan(HighValueThreshold):
		a.Amount = 0.3
	case f.Amount.LessThan(SmallAmountThreshold):
		a.Amount = -0.2
	default:
		a.Amount = -0.1
	}

	switch {
	case f.TransactionVelocity > 10:
		a.Velocity = 0.6
	case f.TransactionVelocity > 5:
		a.Velocity = 0.3
	}

	if isOffHours(f.TimeOfDay) {
		a.Time = 0.2
	} else {
		a.Time = -0.05
	}

	switch {
	case flags.GeoVelocity:
		a.Geo = 0.8
	case f.GeoVelocity != nil && *f.GeoVelocity > 100:
		a.Geo = 0.3
	}

	if f.FailedAttempts > 0 {
		a.Device = 0.1 * float64(f.FailedAttempts)
	}

	switch {
	case !f.PhoneVerified:
		a.Identity = 0.15
	case !f.SocialProfilePresence:
		a.Identity = 0.05
	default:
		a.Identity = -0.05
	}

	return a
}

func isOffHours(hour int) bool {
	return hour < OffHoursStart || hour > OffHoursEnd
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Min(1, math.Max(0, score))
}
