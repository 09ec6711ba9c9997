package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusaplan/nusaplan/internal/forecast"
	jobmetrics "github.com/nusaplan/nusaplan/internal/jobs"
)

// ForecastGenerator describes the behaviour required to produce forecasts.
type ForecastGenerator interface {
	Generate(ctx context.Context, input forecast.GenerateInput) ([]forecast.Record, error)
}

// ForecastGenerateJob coordinates the generation workflow.
type ForecastGenerateJob struct {
	Service ForecastGenerator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewForecastGenerateJob constructs the job handler.
func NewForecastGenerateJob(service ForecastGenerator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ForecastGenerateJob {
	return &ForecastGenerateJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the forecast generation job.
func (j *ForecastGenerateJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("forecast generate: dependencies not configured")
	}
	var payload ForecastGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ForecastType == "" {
		return asynq.SkipRetry
	}
	if payload.FiscalYear <= 0 {
		payload.FiscalYear = j.now().Year() + 1
	}

	tracker := j.metrics().Track(TaskForecastGenerate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	records, err := j.Service.Generate(ctx, forecast.GenerateInput{
		FiscalYear:   payload.FiscalYear,
		ForecastType: payload.ForecastType,
	})
	if err != nil {
		resultErr = err
		j.log().Error("generate forecast", slog.Int("fiscal_year", payload.FiscalYear), slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddRows(TaskForecastGenerate, len(records))

	j.log().Info("generated statistical forecast",
		slog.Int("fiscal_year", payload.FiscalYear),
		slog.String("forecast_type", payload.ForecastType),
		slog.Int("rows", len(records)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ForecastGenerateJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ForecastGenerateJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskForecastGenerate))
	}
	return slog.Default().With(slog.String("job", TaskForecastGenerate))
}

func (j *ForecastGenerateJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *ForecastGenerateJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
