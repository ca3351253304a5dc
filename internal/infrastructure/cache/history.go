package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// HistoryIndex keeps a per-account sorted set of recent transactions, scored
// by event time in milliseconds. Members are "<transactionId>|<amount>".
type HistoryIndex struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.Logger
}

// NewHistoryIndex creates an index that keeps entries for retention past
// their event time.
func NewHistoryIndex(client *redis.Client, retention time.Duration, logger *zap.Logger) *HistoryIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &HistoryIndex{client: client, retention: retention, logger: logger}
}

func historyKey(accountID string) string {
	return HistoryPrefix + accountID
}

func historyMember(txn *transaction.Transaction) string {
	return txn.TransactionID + "|" + txn.Amount.StringFixed(2)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Record adds a stored transaction to its account's history.
func (h *HistoryIndex) Record(ctx context.Context, txn *transaction.Transaction) error {
	key := historyKey(txn.AccountID)

	pipe := h.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(txn.Timestamp.UnixMilli()),
		Member: historyMember(txn),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+millis(txn.Timestamp.Add(-h.retention)))
	pipe.Expire(ctx, key, h.retention+time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Error("history record failed",
			zap.String("account_id", txn.AccountID),
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
		return fmt.Errorf("history record failed: %w", err)
	}
	return nil
}

// CountSimilarRecent counts history entries for accountID with an amount in
// band and an event time within [asOf-window, asOf].
func (h *HistoryIndex) CountSimilarRecent(ctx context.Context, accountID string, band transaction.AmountBand, window time.Duration, asOf time.Time) (int, error) {
	members, err := h.client.ZRangeByScore(ctx, historyKey(accountID), &redis.ZRangeBy{
		Min: millis(asOf.Add(-window)),
		Max: millis(asOf),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("history lookup failed: %w", err)
	}

	count := 0
	for _, member := range members {
		idx := strings.LastIndexByte(member, '|')
		if idx < 0 {
			continue
		}
		amount, err := decimal.NewFromString(member[idx+1:])
		if err != nil {
			h.logger.Warn("skipping malformed history member",
				zap.String("account_id", accountID),
				zap.String("member", member))
			continue
		}
		if band.Contains(amount) {
			count++
		}
	}
	return count, nil
}
