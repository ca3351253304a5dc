package risk

import (
	"context"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Evaluator applies the fixed threshold rules to a transaction's features.
type Evaluator struct {
	history  HistoryLookup
	window   time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWindow overrides the structuring lookback window.
func WithWindow(window time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if window > 0 {
			e.window = window
		}
	}
}

// WithLookupTimeout bounds each historical lookup.
func WithLookupTimeout(timeout time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(logger *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the measurement sink.
func WithRecorder(recorder Recorder) EvaluatorOption {
	return func(e *Evaluator) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// NewEvaluator creates a rule evaluator. A nil history disables structuring
// detection.
func NewEvaluator(history HistoryLookup, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		history:  history,
		window:   DefaultStructuringWindow,
		timeout:  DefaultLookupTimeout,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer("service.risk"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes every rule flag. It never fails: an unavailable history
// lookup leaves the structuring flag unset.
func (e *Evaluator) Evaluate(ctx context.Context, f transaction.Features) transaction.RuleFlags {
	flags := transaction.RuleFlags{
		HighValue:        f.Amount.GreaterThan(HighValueThreshold),
		IPMismatch:       f.BillingCountry != "" && f.IPCountry != "" && f.BillingCountry != f.IPCountry,
		GeoVelocity:      f.GeoVelocity != nil && *f.GeoVelocity > GeoVelocityThreshold,
		MultipleFailures: f.FailedAttempts > MaxFailedAttempts,
	}

	if StructuringBand().Contains(f.Amount) {
		flags.Structuring = e.detectStructuring(ctx, f)
	}

	return flags
}

func (e *Evaluator) detectStructuring(ctx context.Context, f transaction.Features) bool {
	if e.history == nil {
		return false
	}

	ctx, span := e.tracer.Start(ctx, "risk.structuring_lookup",
		trace.WithAttributes(attribute.String("account.id", f.AccountID)))
	defer span.End()

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	count, err := e.history.CountSimilarRecent(lookupCtx, f.AccountID, StructuringBand(), e.window, f.Timestamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history lookup failed")
		e.recorder.RecordLookupDegraded(ctx)
		e.logger.Warn("structuring check degraded, history lookup unavailable",
			zap.String("account_id", f.AccountID),
			zap.Duration("timeout", e.timeout),
			zap.Error(err))
		return false
	}

	span.SetAttributes(attribute.Int("history.similar_count", count))
	return count >= StructuringMinSimilar
}
