package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/repository"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/telemetry"
)

// maxJSONBody bounds JSON request bodies other than batch uploads
const maxJSONBody = 1 << 20

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyActor     contextKey = "actor"
)

// requestIDFromContext returns the request id set by requestIDMiddleware
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// actorFromContext returns the authenticated reviewer, empty when the
// request was not authenticated
func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(contextKeyActor).(string)
	return actor
}

// writeJSON writes v as the response body
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and error body
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		telemetry.WithTrace(r.Context(), h.logger).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body of at most limit bytes into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domainerrors.NewPayloadTooLargeError("request body", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return domainerrors.NewValidationError("EMPTY_BODY", "request body is required")
		default:
			return domainerrors.NewValidationError("INVALID_JSON", "request body is not valid JSON").WithCause(err)
		}
	}
	return nil
}

// pageFromQuery reads limit and offset query parameters
func pageFromQuery(r *http.Request) (repository.Page, error) {
	var page repository.Page
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, domainerrors.NewValidationError("INVALID_LIMIT", "limit must be a non-negative integer")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, domainerrors.NewValidationError("INVALID_OFFSET", "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	return page.Normalize(), nil
}

// pathID parses the {id} path segment
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError("INVALID_ID", "id must be a UUID")
	}
	return id, nil
}
