package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusaplan/nusaplan/internal/app"
	"github.com/nusaplan/nusaplan/internal/budget"
	"github.com/nusaplan/nusaplan/internal/consolidation"
	"github.com/nusaplan/nusaplan/internal/forecast"
	"github.com/nusaplan/nusaplan/internal/netting"
	"github.com/nusaplan/nusaplan/internal/observability"
	"github.com/nusaplan/nusaplan/internal/platform/cache"
	"github.com/nusaplan/nusaplan/internal/platform/db"
	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/platform/ttlcache"
	"github.com/nusaplan/nusaplan/internal/stats"
	"github.com/nusaplan/nusaplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	policy := retry.Policy{MaxRetries: cfg.RetryMax, BaseDelay: cfg.RetryBaseDelay}

	forecastRepo := forecast.NewRepository(dbpool)
	forecastService := forecast.NewService(forecastRepo, forecast.VarianceStrategy{Spread: cfg.ForecastVariance}, policy, logger)
	forecastHandler := forecast.NewHandler(logger, forecastService)

	consolidationRepo := consolidation.NewRepository(dbpool)
	consolidationService := consolidation.NewService(consolidationRepo, policy, logger)
	consolidationHandler := consolidation.NewHandler(logger, consolidationService)

	budgetRepo := budget.NewRepository(dbpool)
	budgetService := budget.NewService(budgetRepo, policy, logger)
	budgetHandler := budget.NewHandler(logger, budgetService)

	nettingRepo := netting.NewRepository(dbpool)
	nettingService := netting.NewService(nettingRepo, policy, logger, cfg.DRPLeadTime)
	nettingHandler := netting.NewHandler(logger, nettingService)

	statsCache := ttlcache.New(cfg.CacheTTL)
	broadcaster := ttlcache.NewBroadcaster(redisClient, statsCache, logger)
	broadcaster.Listen(ctx)

	statsRepo := stats.NewRepository(dbpool)
	statsService := stats.NewService(statsRepo, statsCache, policy)
	statsHandler := stats.NewHandler(logger, statsService)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		ForecastHandler:      forecastHandler,
		ConsolidationHandler: consolidationHandler,
		BudgetHandler:        budgetHandler,
		NettingHandler:       nettingHandler,
		StatsHandler:         statsHandler,
		JobHandler:           jobHandler,
		JobClient:            jobClient,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
