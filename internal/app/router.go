package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nusaplan/nusaplan/internal/budget"
	"github.com/nusaplan/nusaplan/internal/consolidation"
	"github.com/nusaplan/nusaplan/internal/forecast"
	"github.com/nusaplan/nusaplan/internal/netting"
	"github.com/nusaplan/nusaplan/internal/observability"
	"github.com/nusaplan/nusaplan/internal/platform/httpx"
	"github.com/nusaplan/nusaplan/internal/stats"
	"github.com/nusaplan/nusaplan/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	ForecastHandler      *forecast.Handler
	ConsolidationHandler *consolidation.Handler
	BudgetHandler        *budget.Handler
	NettingHandler       *netting.Handler
	StatsHandler         *stats.Handler
	JobHandler           *jobs.Handler
	JobClient            *jobs.Client
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Nusaplan defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.ForecastHandler != nil {
			params.ForecastHandler.MountRoutes(r)
		}
		if params.ConsolidationHandler != nil {
			params.ConsolidationHandler.MountRoutes(r)
		}
		if params.BudgetHandler != nil {
			params.BudgetHandler.MountRoutes(r)
		}
		if params.NettingHandler != nil {
			params.NettingHandler.MountRoutes(r)
		}
		if params.StatsHandler != nil {
			params.StatsHandler.MountRoutes(r)
		}
		if params.JobClient != nil {
			mountJobEnqueueRoutes(r, params.JobClient, params.Logger)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func mountJobEnqueueRoutes(r chi.Router, client *jobs.Client, logger *slog.Logger) {
	r.Post("/jobs/forecast-generate", func(w http.ResponseWriter, req *http.Request) {
		var payload jobs.ForecastGeneratePayload
		if err := httpx.DecodeJSON(req, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
			return
		}
		info, err := client.EnqueueForecastGenerate(req.Context(), payload)
		if err != nil {
			logger.Error("enqueue forecast generate", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to enqueue job")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "queue": info.Queue})
	})
	r.Post("/jobs/netting-refresh", func(w http.ResponseWriter, req *http.Request) {
		var payload jobs.NettingRefreshPayload
		if err := httpx.DecodeJSON(req, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
			return
		}
		if payload.ForecastType == "" {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "forecast_type is required")
			return
		}
		info, err := client.EnqueueNettingRefresh(req.Context(), payload)
		if err != nil {
			logger.Error("enqueue netting refresh", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to enqueue job")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID, "queue": info.Queue})
	})
}
