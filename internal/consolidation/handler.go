package consolidation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nusaplan/nusaplan/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the consolidation module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs consolidation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers consolidation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/consolidations/run", h.handleRun)
	r.Post("/consolidations/approve", h.handleApprove)
	r.Get("/consolidations", h.handleList)
}

type runRequest struct {
	ForecastType string `json:"forecast_type"`
	PeriodType   string `json:"period_type"`
	PeriodValue  string `json:"period_value"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	records, err := h.service.Consolidate(r.Context(), Input{
		ForecastType: req.ForecastType,
		PeriodType:   req.PeriodType,
		PeriodValue:  req.PeriodValue,
	})
	if err != nil {
		h.logger.Error("run consolidation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

type approveRequest struct {
	IDs        []int64 `json:"ids"`
	ApprovedBy string  `json:"approved_by"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	updated, err := h.service.Approve(r.Context(), req.IDs, req.ApprovedBy)
	if err != nil {
		h.logger.Error("approve consolidation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approved": updated})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.service.List(r.Context(), Filter{
		ForecastType: q.Get("forecast_type"),
		PeriodType:   q.Get("period_type"),
		PeriodValue:  q.Get("period_value"),
		ApprovedOnly: q.Get("approved") == "true",
	})
	if err != nil {
		h.logger.Error("list consolidations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}
