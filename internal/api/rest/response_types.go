package rest

import (
	"github.com/davidleathers/transaction-monitor/internal/service/ingestion"
)

// BatchResponse reports a JSON or CSV batch. Errors holds at most the first
// few row errors; Summary.Errors counts all of them.
type BatchResponse struct {
	Message string               `json:"message"`
	Summary BatchSummary         `json:"summary"`
	Errors  []ingestion.RowError `json:"errors"`
}

type BatchSummary struct {
	TotalRows int `json:"totalRows"`
	Processed int `json:"processed"`
	Alerts    int `json:"alerts"`
	Errors    int `json:"errors"`
}

func newBatchResponse(message string, res *ingestion.BatchResult, maxErrors int) BatchResponse {
	errs := res.Errors
	if len(errs) > maxErrors {
		errs = errs[:maxErrors]
	}
	if errs == nil {
		errs = []ingestion.RowError{}
	}
	return BatchResponse{
		Message: message,
		Summary: BatchSummary{
			TotalRows: res.TotalRows,
			Processed: res.Processed,
			Alerts:    res.Alerts,
			Errors:    len(res.Errors),
		},
		Errors: errs,
	}
}
