// Package notify pushes high-priority alerts to analysts.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// Notifier delivers an alert notification.
type Notifier interface {
	NotifyAlert(ctx context.Context, a *alert.Alert, txn *transaction.Transaction) error
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyAlert(context.Context, *alert.Alert, *transaction.Transaction) error {
	return nil
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends HIGH priority alerts to one chat. Lower priorities
// are ignored.
type TelegramNotifier struct {
	sender         Sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	logger         *zap.Logger
}

// NewTelegramBot authenticates the bot token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// NewTelegramNotifier creates a notifier with linear-backoff retries.
func NewTelegramNotifier(sender Sender, chatID int64, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		sender:         sender,
		chatID:         chatID,
		maxRetries:     3,
		retryDelayBase: time.Second,
		logger:         logger,
	}
}

func (n *TelegramNotifier) NotifyAlert(ctx context.Context, a *alert.Alert, txn *transaction.Transaction) error {
	if a.Priority != alert.PriorityHigh {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatAlert(a, txn))
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		if _, err := n.sender.Send(msg); err == nil {
			n.logger.Debug("alert notification sent", zap.String("alert_id", a.ID.String()))
			return nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram notify failed after %d retries: %w", n.maxRetries, lastErr)
}

// FormatAlert renders the plain-text notification body.
func FormatAlert(a *alert.Alert, txn *transaction.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", a.Priority, a.Description)
	if txn != nil {
		fmt.Fprintf(&b, "Transaction: %s\n", txn.TransactionID)
		fmt.Fprintf(&b, "Account: %s\n", txn.AccountID)
		fmt.Fprintf(&b, "Amount: $%s\n", txn.Amount.StringFixed(2))
		fmt.Fprintf(&b, "Score: %.2f (%s)\n", txn.MLScore, txn.RiskLevel)
	}
	fmt.Fprintf(&b, "Alert: %s", a.ID)
	return b.String()
}
