package transaction

import (
	"fmt"
	"strings"
)

// RiskLevel is the discrete label derived from a risk score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

const (
	highRiskBoundary   = 0.9
	mediumRiskBoundary = 0.5
)

// RiskLevelFromScore maps a score to its level. Both boundaries are strict:
// exactly 0.9 is MEDIUM and exactly 0.5 is LOW.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score > highRiskBoundary:
		return RiskLevelHigh
	case score > mediumRiskBoundary:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ParseRiskLevel accepts any letter case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch l := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return l, nil
	default:
		return "", fmt.Errorf("invalid risk level %q", s)
	}
}

func (l RiskLevel) String() string { return string(l) }

// Status is the processing disposition of a scored transaction.
type Status string

const (
	StatusProcessed  Status = "PROCESSED"
	StatusFlagged    Status = "FLAGGED"
	StatusBlocked    Status = "BLOCKED"
	StatusChallenged Status = "CHALLENGED"
)

func (s Status) String() string { return string(s) }

// ReviewStatus tracks the analyst review of a transaction.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewReviewed ReviewStatus = "REVIEWED"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewRejected ReviewStatus = "REJECTED"
)

func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch r := ReviewStatus(strings.ToUpper(strings.TrimSpace(s))); r {
	case ReviewPending, ReviewReviewed, ReviewApproved, ReviewRejected:
		return r, nil
	default:
		return "", fmt.Errorf("invalid review status %q", s)
	}
}

// Type is the kind of money movement.
type Type string

const (
	TypeDeposit    Type = "DEPOSIT"
	TypeWithdrawal Type = "WITHDRAWAL"
	TypeTransfer   Type = "TRANSFER"
	TypePayment    Type = "PAYMENT"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypePayment:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transaction type %q", s)
	}
}
