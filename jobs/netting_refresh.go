package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nusaplan/nusaplan/internal/jobs"
	"github.com/nusaplan/nusaplan/internal/netting"
	"github.com/nusaplan/nusaplan/internal/platform/ttlcache"
)

// NettingComputer describes the behaviour required to recompute net requirements.
type NettingComputer interface {
	Compute(ctx context.Context, input netting.ComputeInput) ([]netting.Result, error)
}

// NettingRefreshJob recomputes net requirements and busts dashboard caches
// afterwards so stale aggregations do not outlive the refresh.
type NettingRefreshJob struct {
	Service     NettingComputer
	Broadcaster *ttlcache.Broadcaster
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewNettingRefreshJob constructs the job handler.
func NewNettingRefreshJob(service NettingComputer, broadcaster *ttlcache.Broadcaster, logger *slog.Logger, metrics *jobmetrics.Metrics) *NettingRefreshJob {
	return &NettingRefreshJob{
		Service:     service,
		Broadcaster: broadcaster,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the netting refresh job.
func (j *NettingRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("netting refresh: dependencies not configured")
	}
	var payload NettingRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ForecastType == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskNettingRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	results, err := j.Service.Compute(ctx, netting.ComputeInput{
		ForecastType: payload.ForecastType,
		MaterialIDs:  payload.MaterialIDs,
	})
	if err != nil {
		resultErr = err
		j.log().Error("recompute netting", slog.String("forecast_type", payload.ForecastType), slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddRows(TaskNettingRefresh, len(results))

	if j.Broadcaster != nil {
		if err := j.Broadcaster.Invalidate(ctx, "dpk_"); err != nil {
			j.log().Warn("bust dashboard cache", slog.Any("error", err))
		}
	}

	j.log().Info("refreshed net requirements",
		slog.String("forecast_type", payload.ForecastType),
		slog.Int("rows", len(results)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *NettingRefreshJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *NettingRefreshJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNettingRefresh))
	}
	return slog.Default().With(slog.String("job", TaskNettingRefresh))
}

func (j *NettingRefreshJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *NettingRefreshJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
