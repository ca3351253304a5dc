package cache

import (
	"context"
	"errors"
	"time"
)

const (
	HistoryPrefix = "txmon:history:"
	StatsKey      = "txmon:dashboard:stats"
)

// ErrMiss is returned by Load when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON snapshots of derived read models, such as dashboard
// statistics, under a TTL.
type Cache interface {
	Load(ctx context.Context, key string, dest interface{}) error
	Store(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
