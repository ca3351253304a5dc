package rest

import (
	"net/http"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
	"github.com/davidleathers/transaction-monitor/internal/service/review"
)

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alerts, err := h.services.Review.ListAlerts(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alerts, err := h.services.Review.ListActiveAlerts(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleListAlertsByPriority(w http.ResponseWriter, r *http.Request) {
	priority, err := alert.ParsePriority(r.PathValue("priority"))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_PRIORITY", "priority must be HIGH, MEDIUM or LOW"))
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alerts, err := h.services.Review.ListAlertsByPriority(r.Context(), priority, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.services.Review.GetAlert(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req UpdateAlertRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	update := review.AlertUpdate{AssignedTo: req.AssignedTo}
	if req.Status != nil {
		status, err := alert.ParseStatus(*req.Status)
		if err != nil {
			h.writeError(w, r, domainerrors.NewValidationError("INVALID_STATUS", err.Error()))
			return
		}
		update.Status = &status
	}

	a, err := h.services.Review.UpdateAlert(r.Context(), id, update, actorFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
