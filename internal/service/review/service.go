package review

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/events"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
)

type service struct {
	transactions repository.TransactionRepository
	alerts       repository.AlertRepository
	publisher    events.Publisher
	listener     ChangeListener
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates the review service. publisher and listener may be nil.
func NewService(
	transactions repository.TransactionRepository,
	alerts repository.AlertRepository,
	publisher events.Publisher,
	listener ChangeListener,
	logger *zap.Logger,
) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		transactions: transactions,
		alerts:       alerts,
		publisher:    publisher,
		listener:     listener,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.transactions.GetByID(ctx, id)
}

func (s *service) ListTransactions(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error) {
	return s.transactions.List(ctx, page)
}

func (s *service) ListFlagged(ctx context.Context, page repository.Page) ([]*transaction.Transaction, error) {
	return s.transactions.ListFlagged(ctx, page)
}

func (s *service) ListByRiskLevel(ctx context.Context, level transaction.RiskLevel, page repository.Page) ([]*transaction.Transaction, error) {
	return s.transactions.ListByRiskLevel(ctx, level, page)
}

func (s *service) SetReviewStatus(ctx context.Context, id uuid.UUID, status transaction.ReviewStatus) (*transaction.Transaction, error) {
	txn, err := s.transactions.UpdateReviewStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction reviewed",
		zap.String("id", id.String()),
		zap.String("review_status", string(status)))
	s.changed(ctx)
	return txn, nil
}

func (s *service) GetAlert(ctx context.Context, id uuid.UUID) (*alert.Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

func (s *service) ListAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error) {
	return s.alerts.List(ctx, page)
}

func (s *service) ListActiveAlerts(ctx context.Context, page repository.Page) ([]*alert.Alert, error) {
	return s.alerts.ListActive(ctx, page)
}

func (s *service) ListAlertsByPriority(ctx context.Context, priority alert.Priority, page repository.Page) ([]*alert.Alert, error) {
	return s.alerts.ListByPriority(ctx, priority, page)
}

func (s *service) UpdateAlert(ctx context.Context, id uuid.UUID, update AlertUpdate, actor string) (*alert.Alert, error) {
	if update.Status == nil && update.AssignedTo == nil {
		return nil, domainerrors.NewValidationError("EMPTY_UPDATE", "status or assignedTo is required")
	}

	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status

	if update.AssignedTo != nil {
		reviewer := strings.TrimSpace(*update.AssignedTo)
		if reviewer == "" {
			reviewer = actor
		}
		if reviewer == "" {
			return nil, domainerrors.NewValidationError("ASSIGNEE_REQUIRED", "assignedTo must name a reviewer")
		}
		if err := a.Assign(reviewer); err != nil {
			return nil, domainerrors.NewBusinessError("ALERT_CLOSED", err.Error())
		}
	}

	if update.Status != nil {
		if err := a.Transition(*update.Status, s.now()); err != nil {
			var invalid alert.ErrInvalidTransition
			if errors.As(err, &invalid) {
				return nil, domainerrors.NewBusinessError("INVALID_TRANSITION", err.Error()).
					WithDetails(map[string]interface{}{"from": string(invalid.From), "to": string(invalid.To)})
			}
			return nil, err
		}
	}

	if err := s.alerts.Update(ctx, a, from); err != nil {
		// A concurrent review closed the alert after it was read; answer as
		// if this request had arrived second.
		if domainerrors.IsType(err, domainerrors.ErrorTypeConflict) {
			code := "ALERT_CLOSED"
			if update.Status != nil {
				code = "INVALID_TRANSITION"
			}
			return nil, domainerrors.NewBusinessError(code, "alert was changed by another review").WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("alert updated",
		zap.String("alert_id", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.String("assigned_to", a.AssignedTo),
		zap.String("actor", actor))

	if event, err := events.New(events.TypeAlertUpdated, a.ID.String(), a); err == nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish alert update", zap.String("alert_id", a.ID.String()), zap.Error(err))
		}
	}
	s.changed(ctx)
	return a, nil
}

func (s *service) changed(ctx context.Context) {
	if s.listener != nil {
		s.listener.InvalidateStats(ctx)
	}
}
