package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nusaplan/nusaplan/internal/app"
	"github.com/nusaplan/nusaplan/internal/forecast"
	"github.com/nusaplan/nusaplan/internal/netting"
	"github.com/nusaplan/nusaplan/internal/platform/cache"
	"github.com/nusaplan/nusaplan/internal/platform/db"
	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/platform/ttlcache"
	"github.com/nusaplan/nusaplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	forecastRepo := forecast.NewRepository(pool)
	forecastService := forecast.NewService(forecastRepo, forecast.VarianceStrategy{Spread: cfg.ForecastVariance}, policy, logger)
	generateJob := jobs.NewForecastGenerateJob(forecastService, logger, nil)

	nettingRepo := netting.NewRepository(pool)
	nettingService := netting.NewService(nettingRepo, policy, logger, cfg.DRPLeadTime)

	// The worker holds its own cache instance; invalidations published here
	// reach the API process over Redis pub/sub.
	statsCache := ttlcache.New(cfg.CacheTTL)
	broadcaster := ttlcache.NewBroadcaster(redisClient, statsCache, logger)
	refreshJob := jobs.NewNettingRefreshJob(nettingService, broadcaster, logger, nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:        asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:           logger,
		ForecastJob:      generateJob,
		NettingJob:       refreshJob,
		NettingCron:      "0 2 * * *",
		NettingCronScope: jobs.NettingRefreshPayload{ForecastType: "DPK"},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
