package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
)

// Service is the analyst workflow over stored transactions and alerts.
type Service interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error)
	ListFlagged(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error)
	ListByRiskLevel(ctx context.Context, level transaction.RiskLevel, page repository.Page) ([]*transaction.Transaction, error)
	// SetReviewStatus records the analyst decision on a transaction
	SetReviewStatus(ctx context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error)

	GetAlert(ctx context.Context, id uuid.UUID) (*alert.Alert, error)
	ListAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error)
	ListActiveAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error)
	ListAlertsByPriority(ctx context.Context, priority alert.Priority, page repository.Page) ([]*alert.Alert, error)
	// UpdateAlert applies assignment then status change; actor is the
	// authenticated reviewer, if any
	UpdateAlert(ctx context.Context, id uuid.UUID, update AlertUpdate, actor string) (*alert.Alert, error)
}

// AlertUpdate carries the optional changes of an alert PATCH. A present but
// empty AssignedTo assigns the alert to the acting reviewer.
type AlertUpdate struct {
	Status     *alert.Status
	AssignedTo *string
}

// ChangeListener is told when stored data changed.
type ChangeListener interface {
	InvalidateStats(ctx context.Context)
}
