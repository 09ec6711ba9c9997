package budget

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusaplan/nusaplan/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the budget module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs budget handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers budget routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/budgets", h.handleSubmit)
	r.Post("/budgets/{id}/approve", h.handleApprove)
	r.Post("/budgets/{id}/reject", h.handleReject)
	r.Get("/budgets", h.handleList)
}

type submitRequest struct {
	ForecastType string `json:"forecast_type" validate:"required"`
	FiscalYear   int    `json:"fiscal_year" validate:"required,gt=0"`
	TotalBudget  string `json:"total_budget" validate:"required"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	SubmittedBy  string `json:"submitted_by" validate:"required"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	approval, err := h.service.Submit(r.Context(), SubmitInput{
		ForecastType: req.ForecastType,
		FiscalYear:   req.FiscalYear,
		TotalBudget:  req.TotalBudget,
		Currency:     req.Currency,
		SubmittedBy:  req.SubmittedBy,
	})
	if err != nil {
		h.logger.Error("submit budget", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, approval)
}

type decisionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid approval id")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	approval, err := h.service.Approve(r.Context(), id, req.ActorID)
	if err != nil {
		h.logger.Error("approve budget", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approval)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid approval id")
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	approval, err := h.service.Reject(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		h.logger.Error("reject budget", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approval)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	fiscalYear := 0
	if raw := r.URL.Query().Get("fiscal_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year")
			return
		}
		fiscalYear = year
	}
	approvals, err := h.service.List(r.Context(), fiscalYear)
	if err != nil {
		h.logger.Error("list budgets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": approvals})
}
