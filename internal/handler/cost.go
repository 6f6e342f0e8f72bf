package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
	"github.com/costtrack/costtrack/internal/middleware"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/service"
)

// CostHandler handles the /costs and /activity endpoints.
type CostHandler struct {
	svc    *service.CostService
	logger *slog.Logger
}

// NewCostHandler creates a new CostHandler.
func NewCostHandler(svc *service.CostService, logger *slog.Logger) *CostHandler {
	return &CostHandler{svc: svc, logger: logger}
}

// Create handles POST /costs.
func (h *CostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CostInput
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	cost, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		h.handleServiceError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, cost.ToResponse())
}

// List handles GET /costs.
func (h *CostHandler) List(w http.ResponseWriter, r *http.Request) {
	costs, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, "", err)
		return
	}

	resp := make([]model.CostResponse, 0, len(costs))
	for i := range costs {
		resp = append(resp, costs[i].ToResponse())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /costs/{id}.
func (h *CostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := costID(w, r)
	if !ok {
		return
	}

	cost, err := h.svc.Get(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, raw, err)
		return
	}
	writeJSON(w, http.StatusOK, cost.ToResponse())
}

// Update handles PUT /costs/{id}. Absent fields keep their values.
func (h *CostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := costID(w, r)
	if !ok {
		return
	}

	var req service.CostInput
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	cost, err := h.svc.Update(r.Context(), auth.UserIDFromContext(r.Context()), id, req)
	if err != nil {
		h.handleServiceError(w, r, raw, err)
		return
	}
	writeJSON(w, http.StatusOK, cost.ToResponse())
}

// Delete handles DELETE /costs/{id}.
func (h *CostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := costID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		h.handleServiceError(w, r, raw, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /costs/summary.
func (h *CostHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Activity handles GET /activity?limit=N.
func (h *CostHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeFieldErrors(w, r, []dto.FieldError{{Field: "limit", Message: "must be an integer"}})
			return
		}
		limit = n
	}

	events, err := h.svc.Activity(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.handleServiceError(w, r, "", err)
		return
	}

	resp := make([]dto.ActivityResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.ToActivityResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// costID parses the {id} path parameter, writing a 422 on failure.
func costID(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusUnprocessableEntity, dto.CodeValidation, i18n.MsgInvalidCostID)
		return 0, raw, false
	}
	return id, raw, true
}

func (h *CostHandler) handleServiceError(w http.ResponseWriter, r *http.Request, rawID string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFieldErrors(w, r, toFieldErrors(verr))
	case errors.Is(err, service.ErrCostNotFound):
		writeError(w, r, http.StatusNotFound, dto.CodeNotFound, i18n.MsgCostNotFound, rawID)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, dto.CodeForbidden, i18n.MsgCostForbidden)
	default:
		h.logger.Error("cost request failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, dto.CodeInternal, i18n.MsgInternalError)
	}
}
