package stats

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nusaplan/nusaplan/internal/platform/httpx"
)

const defaultBottomN = 5

// Handler wires HTTP endpoints for the statistics module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs stats handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stats routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stats/submissions/{year}", h.handleSubmissions)
	r.Get("/stats/accuracy/{year}", h.handleAccuracy)
	r.Get("/stats/yoy/{year}", h.handleYoY)
}

func yearParam(r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	return year, err == nil && year > 0
}

func (h *Handler) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year")
		return
	}
	summary, err := h.service.SubmissionStats(r.Context(), year)
	if err != nil {
		h.logger.Error("submission stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year")
		return
	}
	bottom := defaultBottomN
	if raw := r.URL.Query().Get("bottom"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "bottom must be a positive integer")
			return
		}
		bottom = n
	}
	rows, err := h.service.AccuracyBottomN(r.Context(), year, bottom)
	if err != nil {
		h.logger.Error("accuracy ranking", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleYoY(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year")
		return
	}
	comparison, err := h.service.YearOverYear(r.Context(), year)
	if err != nil {
		h.logger.Error("yoy comparison", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comparison)
}
