package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/service/ingestion"
)

// csvFormField is the multipart field carrying the uploaded file
const csvFormField = "csvFile"

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txns, err := h.services.Review.ListTransactions(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txns, err := h.services.Review.ListFlagged(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) handleListByRiskLevel(w http.ResponseWriter, r *http.Request) {
	level, err := transaction.ParseRiskLevel(r.PathValue("level"))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_RISK_LEVEL", "risk level must be LOW, MEDIUM or HIGH"))
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txns, err := h.services.Review.ListByRiskLevel(r.Context(), level, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txn, err := h.services.Review.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// handleCreateTransaction serves both POST /api/transactions and the upload
// page's POST /api/transactions/single
func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var rec ingestion.Record
	if err := decodeJSON(w, r, maxJSONBody, &rec); err != nil {
		h.writeError(w, r, err)
		return
	}
	scored, err := h.services.Ingestion.Ingest(r.Context(), rec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scored.Transaction)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var items []json.RawMessage
	if err := decodeJSON(w, r, h.uploadMaxBytes, &items); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(items) == 0 {
		h.writeError(w, r, domainerrors.NewValidationError("EMPTY_BATCH", "batch must contain at least one transaction"))
		return
	}

	res := h.services.Ingestion.IngestJSON(r.Context(), items)
	writeJSON(w, http.StatusOK, newBatchResponse("Batch processing completed", res, h.maxErrorReport))
}

func (h *Handler) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes+(1<<16))
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, domainerrors.NewPayloadTooLargeError("upload", h.uploadMaxBytes))
			return
		}
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_UPLOAD", "request must be multipart/form-data").WithCause(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(csvFormField)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("NO_FILE", "No CSV file uploaded"))
		return
	}
	defer file.Close()

	if header.Size > h.uploadMaxBytes {
		h.writeError(w, r, domainerrors.NewPayloadTooLargeError("upload", h.uploadMaxBytes))
		return
	}
	if !isCSV(header.Filename, header.Header.Get("Content-Type")) {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_FILE_TYPE", "Only CSV files are allowed"))
		return
	}

	res, err := h.services.Ingestion.IngestCSV(r.Context(), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse("CSV processing completed", res, h.maxErrorReport))
}

func (h *Handler) handleReviewTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req ReviewRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := transaction.ParseReviewStatus(req.ReviewStatus)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_REVIEW_STATUS",
			"reviewStatus must be PENDING, REVIEWED, APPROVED or REJECTED"))
		return
	}

	txn, err := h.services.Review.SetReviewStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func isCSV(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/csv"
}
