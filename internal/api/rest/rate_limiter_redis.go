package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

// RedisRateLimiter shares a per-client fixed one-second window across API
// instances. When Redis is unreachable it falls back to an in-process limiter.
type RedisRateLimiter struct {
	client   *redis.Client
	limit    int
	fallback *RateLimiter
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// RateLimitResult contains rate limit check results
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// NewRedisRateLimiter allows rps requests per second per client. burst only
// applies to the local fallback.
func NewRedisRateLimiter(client *redis.Client, rps, burst int, logger *zap.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRateLimiter{
		client:   client,
		limit:    rps,
		fallback: NewRateLimiter(rps, burst),
		tracer:   otel.Tracer("api.rest.ratelimit"),
		logger:   logger,
		now:      time.Now,
	}
}

// CheckLimit counts one request for key in the current window
func (r *RedisRateLimiter) CheckLimit(ctx context.Context, key string) (*RateLimitResult, error) {
	ctx, span := r.tracer.Start(ctx, "ratelimit.check",
		trace.WithAttributes(
			attribute.String("key", key),
			attribute.Int("limit", r.limit),
		),
	)
	defer span.End()

	now := r.now()
	window := now.Unix()
	redisKey := fmt.Sprintf("txmon:ratelimit:%s:%d", key, window)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	count := incr.Val()
	allowed := count <= int64(r.limit)
	remaining := r.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   time.Unix(window+1, 0),
	}
	if !allowed {
		result.RetryAfter = result.ResetAt.Sub(now)
	}

	span.SetAttributes(
		attribute.Bool("allowed", allowed),
		attribute.Int64("count", count),
	)
	return result, nil
}

// Middleware rejects clients over their budget with 429
func (r *RedisRateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := clientIP(req)

			result, err := r.CheckLimit(req.Context(), key)
			if err != nil {
				r.logger.Warn("redis rate limiter unavailable, using local limiter", zap.Error(err))
				if !r.fallback.Allow(key) {
					writeRateLimited(w, r.limit, time.Second)
					return
				}
				next.ServeHTTP(w, req)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if !result.Allowed {
				writeRateLimited(w, result.Limit, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, limit int, retryAfter time.Duration) {
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	status, body := mapError(domainerrors.NewRateLimitError())
	writeJSON(w, status, body)
}
