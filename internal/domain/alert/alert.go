package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type records which kind of signal produced the alert.
type Type string

const (
	TypeRuleBased Type = "RULE_BASED"
	TypeMLBased   Type = "ML_BASED"
	TypeCombined  Type = "COMBINED"
)

// Priority orders alerts in the review queue.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q", s)
	}
}

// Status is the review state of an alert.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusResolved  Status = "RESOLVED"
	StatusDismissed Status = "DISMISSED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusResolved, StatusDismissed:
		return st, nil
	default:
		return "", fmt.Errorf("invalid alert status %q", s)
	}
}

// Alert is a review item raised for a suspicious transaction.
type Alert struct {
	ID            uuid.UUID              `json:"id"`
	TransactionID uuid.UUID              `json:"transactionId"`
	AlertType     Type                   `json:"alertType"`
	Priority      Priority               `json:"priority"`
	Description   string                 `json:"description"`
	Details       map[string]interface{} `json:"details"`
	Status        Status                 `json:"status"`
	AssignedTo    string                 `json:"assignedTo,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	ResolvedAt    *time.Time             `json:"resolvedAt,omitempty"`
}

// New creates an ACTIVE alert for the stored transaction.
func New(transactionID uuid.UUID, alertType Type, priority Priority, description string, details map[string]interface{}) *Alert {
	return &Alert{
		ID:            uuid.New(),
		TransactionID: transactionID,
		AlertType:     alertType,
		Priority:      priority,
		Description:   description,
		Details:       details,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
}

// ErrInvalidTransition is returned for any status change other than
// ACTIVE to RESOLVED or DISMISSED.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot move alert from %s to %s", e.From, e.To)
}

// Transition moves an active alert to a terminal status.
func (a *Alert) Transition(to Status, at time.Time) error {
	if a.Status != StatusActive || (to != StatusResolved && to != StatusDismissed) {
		return ErrInvalidTransition{From: a.Status, To: to}
	}

	a.Status = to
	if to == StatusResolved {
		resolved := at.UTC()
		a.ResolvedAt = &resolved
	}
	return nil
}

// Assign sets the reviewer. Only active alerts can be reassigned.
func (a *Alert) Assign(reviewer string) error {
	if a.Status != StatusActive {
		return fmt.Errorf("cannot assign %s alert", a.Status)
	}
	a.AssignedTo = strings.TrimSpace(reviewer)
	return nil
}
