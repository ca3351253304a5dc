package risk

import (
	"context"
	"time"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Assessment is the full pipeline outcome for one transaction.
type Assessment struct {
	Flags         transaction.RuleFlags
	Result        transaction.ScoreResult
	Status        transaction.Status
	AlertRequired bool
}

// Pipeline chains rule evaluation, scoring and disposition. It holds no
// per-transaction state and is safe for concurrent use.
type Pipeline struct {
	evaluator *Evaluator
	recorder  Recorder
	tracer    trace.Tracer
}

// NewPipeline creates a pipeline around the evaluator.
func NewPipeline(evaluator *Evaluator, recorder Recorder) *Pipeline {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		evaluator: evaluator,
		recorder:  recorder,
		tracer:    otel.Tracer("service.risk"),
	}
}

// Assess scores the features and resolves the disposition.
func (p *Pipeline) Assess(ctx context.Context, f transaction.Features) Assessment {
	ctx, span := p.tracer.Start(ctx, "risk.assess")
	defer span.End()

	start := time.Now()

	flags := p.evaluator.Evaluate(ctx, f)
	result := Score(f, flags)
	disposition := Resolve(result, flags)

	span.SetAttributes(
		attribute.Float64("risk.score", result.Score),
		attribute.String("risk.level", string(result.RiskLevel)),
		attribute.String("risk.status", string(disposition.Status)),
	)
	p.recorder.RecordAssessment(ctx, result.RiskLevel, disposition.Status, result.Score, time.Since(start))

	return Assessment{
		Flags:         flags,
		Result:        result,
		Status:        disposition.Status,
		AlertRequired: disposition.AlertRequired,
	}
}

// Apply runs the pipeline for a transaction, records the outcome on it and
// returns the alert to persist, or nil when none is required.
func (p *Pipeline) Apply(ctx context.Context, txn *transaction.Transaction) (Assessment, *alert.Alert) {
	a := p.Assess(ctx, txn.Features())
	txn.ApplyAssessment(a.Flags, a.Result, a.Status, a.AlertRequired)
	if !a.AlertRequired {
		return a, nil
	}
	return a, Synthesize(txn, a.Flags, a.Result)
}
