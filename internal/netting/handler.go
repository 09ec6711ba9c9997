package netting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nusaplan/nusaplan/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the netting module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs netting handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers netting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/netting/compute", h.handleCompute)
	r.Post("/netting/convert-drp", h.handleConvert)
	r.Get("/netting", h.handleList)
}

type computeRequest struct {
	ForecastType string   `json:"forecast_type"`
	MaterialIDs  []string `json:"material_ids"`
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	results, err := h.service.Compute(r.Context(), ComputeInput{ForecastType: req.ForecastType, MaterialIDs: req.MaterialIDs})
	if err != nil {
		h.logger.Error("compute netting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

type convertRequest struct {
	ForecastType string  `json:"forecast_type"`
	ResultIDs    []int64 `json:"result_ids"`
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	demands, err := h.service.ConvertToDRP(r.Context(), ConvertInput{ForecastType: req.ForecastType, ResultIDs: req.ResultIDs})
	if err != nil {
		h.logger.Error("convert to drp", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"demands": demands})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	forecastType := r.URL.Query().Get("forecast_type")
	if forecastType == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "forecast_type query parameter required")
		return
	}
	results, err := h.service.List(r.Context(), forecastType)
	if err != nil {
		h.logger.Error("list netting", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}
