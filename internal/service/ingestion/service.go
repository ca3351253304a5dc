package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/domain/validation"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/events"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/notify"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
	"github.com/davidleathers/transaction-monitor/internal/service/risk"
)

const notifyTimeout = 30 * time.Second

// Sources label ingestion metrics.
const (
	SourceAPI   = "api"
	SourceBatch = "batch"
	SourceCSV   = "csv"
)

// Dependencies wires the service. Only Store and Pipeline are required.
type Dependencies struct {
	Store     repository.TransactionRepository
	Pipeline  *risk.Pipeline
	Publisher events.Publisher
	Notifier  notify.Notifier
	Geo       CountryResolver
	History   HistoryRecorder
	Metrics   Metrics
	Listener  ChangeListener
	Logger    *zap.Logger

	// Workers bounds concurrent account groups in a batch
	Workers int
}

type service struct {
	store     repository.TransactionRepository
	pipeline  *risk.Pipeline
	publisher events.Publisher
	notifier  notify.Notifier
	geo       CountryResolver
	history   HistoryRecorder
	metrics   Metrics
	listener  ChangeListener
	validator *validation.Validator
	logger    *zap.Logger
	workers   int
}

// NewService creates the ingestion service.
func NewService(deps Dependencies) Service {
	s := &service{
		store:     deps.Store,
		pipeline:  deps.Pipeline,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		geo:       deps.Geo,
		history:   deps.History,
		metrics:   deps.Metrics,
		listener:  deps.Listener,
		validator: validation.New(),
		logger:    deps.Logger,
		workers:   deps.Workers,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.notifier == nil {
		s.notifier = notify.NopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

func (s *service) Ingest(ctx context.Context, rec Record) (*Scored, error) {
	scored, err := s.ingest(ctx, rec)
	if err != nil {
		s.metrics.RecordIngestError(SourceAPI)
		return nil, err
	}
	s.changed(ctx)
	return scored, nil
}

func (s *service) IngestBatch(ctx context.Context, records []Record) *BatchResult {
	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = row{index: i + 1, record: rec, raw: rec}
	}
	return s.processRows(ctx, rows, SourceBatch)
}

// row is one batch entry. parseErr is set when the raw input could not be
// turned into a Record.
type row struct {
	index    int
	record   Record
	raw      interface{}
	parseErr error
}

type rowOutcome struct {
	scored *Scored
	err    error
}

// processRows scores rows of different accounts concurrently while keeping
// each account's rows in input order, so earlier rows of a batch are visible
// to later structuring checks for the same account.
func (s *service) processRows(ctx context.Context, rows []row, source string) *BatchResult {
	outcomes := make([]rowOutcome, len(rows))

	var order []string
	groups := make(map[string][]int)
	for i := range rows {
		if rows[i].parseErr != nil {
			outcomes[i].err = rows[i].parseErr
			continue
		}
		// Grouping uses the canonical account id so padded variants of the
		// same account never score concurrently.
		rows[i].record.normalize()
		key := rows[i].record.AccountID
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, key := range order {
		indexes := groups[key]
		g.Go(func() error {
			for _, i := range indexes {
				if err := gctx.Err(); err != nil {
					outcomes[i].err = err
					continue
				}
				outcomes[i].scored, outcomes[i].err = s.ingest(gctx, rows[i].record)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{TotalRows: len(rows), Errors: []RowError{}}
	for i, o := range outcomes {
		if o.err != nil {
			s.metrics.RecordIngestError(source)
			result.Errors = append(result.Errors, RowError{
				RowIndex:     rows[i].index,
				RawData:      rows[i].raw,
				ErrorMessage: rowMessage(o.err),
			})
			continue
		}
		result.Processed++
		if o.scored.Alert != nil {
			result.Alerts++
		}
	}

	if result.Processed > 0 {
		s.changed(ctx)
	}

	s.logger.Info("batch ingested",
		zap.String("source", source),
		zap.Int("total_rows", result.TotalRows),
		zap.Int("processed", result.Processed),
		zap.Int("errors", len(result.Errors)),
		zap.Int("alerts", result.Alerts))

	return result
}

func (s *service) ingest(ctx context.Context, rec Record) (*Scored, error) {
	rec.normalize()
	if err := s.validator.Struct(rec); err != nil {
		return nil, err
	}

	txn, err := rec.toTransaction()
	if err != nil {
		return nil, err
	}
	s.enrich(txn)

	assessment, a := s.pipeline.Apply(ctx, txn)

	if err := s.store.SaveScored(ctx, txn, a); err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.Record(ctx, txn); err != nil {
			s.logger.Warn("history index update failed",
				zap.String("transaction_id", txn.TransactionID),
				zap.Error(err))
		}
	}

	s.logger.Debug("transaction scored",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("account_id", txn.AccountID),
		zap.Float64("score", assessment.Result.Score),
		zap.String("risk_level", string(assessment.Result.RiskLevel)),
		zap.String("status", string(assessment.Status)))

	s.publish(ctx, events.TypeTransactionScored, txn.ID.String(), txn)
	if a != nil {
		s.metrics.RecordAlert(a.Priority)
		s.publish(ctx, events.TypeAlertCreated, a.ID.String(), a)
		s.notify(ctx, a, txn)
	}

	return &Scored{Transaction: txn, Alert: a}, nil
}

// enrich fills ipCountry from GeoIP when the caller did not supply it.
func (s *service) enrich(txn *transaction.Transaction) {
	if s.geo == nil || txn.IPCountry != "" || txn.IPAddress == "" {
		return
	}
	country, err := s.geo.Country(txn.IPAddress)
	if err != nil {
		s.logger.Debug("geoip lookup failed",
			zap.String("ip_address", txn.IPAddress),
			zap.Error(err))
		return
	}
	txn.IPCountry = country
}

func (s *service) publish(ctx context.Context, eventType events.Type, aggregateID string, payload interface{}) {
	event, err := events.New(eventType, aggregateID, payload)
	if err != nil {
		s.logger.Error("failed to build event", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}
}

// notify runs detached from the request so retries never delay ingestion.
func (s *service) notify(ctx context.Context, a *alert.Alert, txn *transaction.Transaction) {
	alertCopy, txnCopy := *a, *txn
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyAlert(nctx, &alertCopy, &txnCopy); err != nil {
			s.logger.Warn("alert notification failed",
				zap.String("alert_id", alertCopy.ID.String()),
				zap.Error(err))
		}
	}()
}

func (s *service) changed(ctx context.Context) {
	if s.listener != nil {
		s.listener.InvalidateStats(ctx)
	}
}

// rowMessage flattens an error for the per-row report.
func rowMessage(err error) string {
	appErr, ok := domainerrors.As(err)
	if !ok || len(appErr.Details) == 0 {
		return err.Error()
	}

	fields := make([]string, 0, len(appErr.Details))
	for field := range appErr.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s: %v", field, appErr.Details[field])
	}
	return appErr.Message + " (" + strings.Join(parts, "; ") + ")"
}

type nopMetrics struct{}

func (nopMetrics) RecordAlert(alert.Priority) {}
func (nopMetrics) RecordIngestError(string)   {}
