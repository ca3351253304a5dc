package ingestion

import (
	"context"
	"encoding/json"
	"io"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
)

// Service ingests raw transactions: validate, enrich, score, persist, publish.
type Service interface {
	// Ingest scores and stores one record
	Ingest(ctx context.Context, rec Record) (*Scored, error)
	// IngestBatch processes every record independently
	IngestBatch(ctx context.Context, records []Record) *BatchResult
	// IngestJSON processes a JSON array body element by element, reporting
	// elements that do not decode as row errors
	IngestJSON(ctx context.Context, items []json.RawMessage) *BatchResult
	// IngestCSV parses a CSV document with a header row and ingests each data row
	IngestCSV(ctx context.Context, r io.Reader) (*BatchResult, error)
}

// Scored is the stored transaction with the alert raised for it, if any.
type Scored struct {
	Transaction *transaction.Transaction
	Alert       *alert.Alert
}

// RowError describes one rejected batch row. RowIndex is 1-based.
type RowError struct {
	RowIndex     int         `json:"rowIndex"`
	RawData      interface{} `json:"rawData"`
	ErrorMessage string      `json:"errorMessage"`
}

// BatchResult summarizes a batch. Errors are ordered by row.
type BatchResult struct {
	TotalRows int        `json:"totalRows"`
	Processed int        `json:"processed"`
	Alerts    int        `json:"alerts"`
	Errors    []RowError `json:"errors"`
}

// HistoryRecorder mirrors stored transactions into an external lookup index.
type HistoryRecorder interface {
	Record(ctx context.Context, txn *transaction.Transaction) error
}

// CountryResolver maps an IP address to an ISO country code.
type CountryResolver interface {
	Country(ip string) (string, error)
}

// Metrics counts ingestion outcomes.
type Metrics interface {
	RecordAlert(priority alert.Priority)
	RecordIngestError(source string)
}

// ChangeListener is told when stored data changed.
type ChangeListener interface {
	InvalidateStats(ctx context.Context)
}
