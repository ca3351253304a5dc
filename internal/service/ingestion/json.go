package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

// IngestJSON decodes each element of a JSON array body on its own, so an
// element with a mistyped field becomes a row error instead of failing the
// whole batch.
func (s *service) IngestJSON(ctx context.Context, items []json.RawMessage) *BatchResult {
	rows := make([]row, len(items))
	for i, item := range items {
		rows[i] = decodeJSONRow(i+1, item)
	}
	return s.processRows(ctx, rows, SourceBatch)
}

func decodeJSONRow(index int, item json.RawMessage) row {
	var raw interface{}
	if err := json.Unmarshal(item, &raw); err != nil {
		raw = string(item)
	}

	r := row{index: index, raw: raw}
	if err := json.Unmarshal(item, &r.record); err != nil {
		r.parseErr = domainerrors.NewValidationError("INVALID_ROW", decodeProblem(err)).WithCause(err)
	}
	return r
}

// decodeProblem names the offending field when encoding/json reports one.
// Errors from decimal and time unmarshalers carry no field name.
func decodeProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "row must be a JSON object"
		}
		return fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return "row has a malformed value: " + err.Error()
}
