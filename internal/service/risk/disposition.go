package risk

import "github.com/davidleathers/transaction-monitor/internal/domain/transaction"

// Disposition is the processing decision for a scored transaction.
type Disposition struct {
	Status        transaction.Status
	AlertRequired bool
}

// Resolve maps the risk level to a status; any triggered rule overrides it
// to FLAGGED.
func Resolve(result transaction.ScoreResult, flags transaction.RuleFlags) Disposition {
	status := transaction.StatusProcessed
	switch result.RiskLevel {
	case transaction.RiskLevelHigh:
		status = transaction.StatusBlocked
	case transaction.RiskLevelMedium:
		status = transaction.StatusChallenged
	}

	if flags.Any() {
		status = transaction.StatusFlagged
	}

	return Disposition{
		Status:        status,
		AlertRequired: status != transaction.StatusProcessed,
	}
}
