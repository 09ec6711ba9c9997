package forecast

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nusaplan/nusaplan/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the forecast module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs forecast handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers forecast routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/forecasts/generate", h.handleGenerate)
	r.Get("/forecasts", h.handleList)
}

type generateRequest struct {
	FiscalYear   int    `json:"fiscal_year"`
	ForecastType string `json:"forecast_type"`
}

type generateResponse struct {
	FiscalYear   int      `json:"fiscal_year"`
	ForecastType string   `json:"forecast_type"`
	Records      []Record `json:"records"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	records, err := h.service.Generate(r.Context(), GenerateInput{FiscalYear: req.FiscalYear, ForecastType: req.ForecastType})
	if err != nil {
		h.logger.Error("generate forecast", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, generateResponse{FiscalYear: req.FiscalYear, ForecastType: req.ForecastType, Records: records})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	forecastType := r.URL.Query().Get("forecast_type")
	year, err := strconv.Atoi(r.URL.Query().Get("fiscal_year"))
	if forecastType == "" || err != nil || year <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "forecast_type and fiscal_year query parameters required")
		return
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	records, err := h.service.List(r.Context(), forecastType, from, to)
	if err != nil {
		h.logger.Error("list forecasts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}
