package rest

import (
	"net/http"
	"strconv"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

func (h *Handler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.services.Dashboard.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_LIMIT", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	metrics, err := h.services.Dashboard.ListMetrics(r.Context(), r.URL.Query().Get("name"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.services.Dashboard.LatestMetrics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleRecordMetric(w http.ResponseWriter, r *http.Request) {
	var req RecordMetricRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	m, err := h.services.Dashboard.RecordMetric(r.Context(), req.MetricName, req.MetricValue)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
