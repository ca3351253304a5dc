package risk

import (
	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// Alert descriptions
const (
	DescStructuring     = "Potential structuring pattern detected"
	DescGeoVelocity     = "Impossible travel pattern detected"
	DescHighValuePrefix = "High-value transaction: $"
	DescHighRisk        = "High-risk transaction flagged for review"
	DescMediumRisk      = "Medium-risk transaction flagged for review"
	DescGeneric         = "Transaction flagged for review"
)

// Synthesize builds the ACTIVE alert for a transaction whose disposition
// requires one. The transaction must already carry its assessment.
func Synthesize(txn *transaction.Transaction, flags transaction.RuleFlags, result transaction.ScoreResult) *alert.Alert {
	priority := alertPriority(flags, result.Score)

	return alert.New(
		txn.ID,
		alertType(flags),
		priority,
		describe(txn, flags, priority),
		alertDetails(txn, flags, result),
	)
}

func alertType(flags transaction.RuleFlags) alert.Type {
	if flags.HighValue || flags.Structuring || flags.GeoVelocity {
		return alert.TypeRuleBased
	}
	return alert.TypeMLBased
}

func alertPriority(flags transaction.RuleFlags, score float64) alert.Priority {
	switch {
	case score > AlertHighScore || flags.GeoVelocity || flags.Structuring:
		return alert.PriorityHigh
	case score > AlertMediumScore || flags.HighValue:
		return alert.PriorityMedium
	default:
		return alert.PriorityLow
	}
}

// describe picks the first matching description in precedence order.
func describe(txn *transaction.Transaction, flags transaction.RuleFlags, priority alert.Priority) string {
	switch {
	case flags.Structuring:
		return DescStructuring
	case flags.GeoVelocity:
		return DescGeoVelocity
	case flags.HighValue:
		return DescHighValuePrefix + txn.Amount.StringFixed(2)
	}

	switch priority {
	case alert.PriorityHigh:
		return DescHighRisk
	case alert.PriorityMedium:
		return DescMediumRisk
	default:
		return DescGeneric
	}
}

func alertDetails(txn *transaction.Transaction, flags transaction.RuleFlags, result transaction.ScoreResult) map[string]interface{} {
	return map[string]interface{}{
		"transactionId": txn.TransactionID,
		"accountId":     txn.AccountID,
		"amount":        txn.Amount.StringFixed(2),
		"mlScore":       result.Score,
		"score":         result.Score,
		"riskLevel":     string(result.RiskLevel),
		"confidence":    result.Confidence,
		"flags": map[string]bool{
			"highValue":        flags.HighValue,
			"structuring":      flags.Structuring,
			"ipMismatch":       flags.IPMismatch,
			"geoVelocity":      flags.GeoVelocity,
			"multipleFailures": flags.MultipleFailures,
		},
		"attribution": map[string]float64{
			"amount":   result.Attribution.Amount,
			"velocity": result.Attribution.Velocity,
			"time":     result.Attribution.Time,
			"geo":      result.Attribution.Geo,
			"device":   result.Attribution.Device,
			"identity": result.Attribution.Identity,
		},
	}
}
