package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nusaplan/nusaplan/internal/forecast"
	"github.com/nusaplan/nusaplan/internal/netting"
)

type fakeGenerator struct {
	input   forecast.GenerateInput
	records []forecast.Record
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, input forecast.GenerateInput) ([]forecast.Record, error) {
	f.input = input
	return f.records, f.err
}

type fakeComputer struct {
	input   netting.ComputeInput
	results []netting.Result
	err     error
}

func (f *fakeComputer) Compute(ctx context.Context, input netting.ComputeInput) ([]netting.Result, error) {
	f.input = input
	return f.results, f.err
}

func TestForecastGenerateJobPassesScope(t *testing.T) {
	gen := &fakeGenerator{records: make([]forecast.Record, 4)}
	job := NewForecastGenerateJob(gen, nil, nil)

	task, err := NewForecastGenerateTask(ForecastGeneratePayload{FiscalYear: 2026, ForecastType: "DPK"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2026, gen.input.FiscalYear)
	require.Equal(t, "DPK", gen.input.ForecastType)
}

func TestForecastGenerateJobDefaultsToNextYear(t *testing.T) {
	gen := &fakeGenerator{}
	job := NewForecastGenerateJob(gen, nil, nil)

	payload, err := json.Marshal(ForecastGeneratePayload{ForecastType: "DPK"})
	require.NoError(t, err)
	task := asynq.NewTask(TaskForecastGenerate, payload)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, job.now().Year()+1, gen.input.FiscalYear)
}

func TestForecastGenerateJobRejectsMalformedPayload(t *testing.T) {
	job := NewForecastGenerateJob(&fakeGenerator{}, nil, nil)
	task := asynq.NewTask(TaskForecastGenerate, []byte("{not json"))

	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestForecastGenerateJobRequiresForecastType(t *testing.T) {
	gen := &fakeGenerator{}
	job := NewForecastGenerateJob(gen, nil, nil)

	payload, err := json.Marshal(ForecastGeneratePayload{FiscalYear: 2026})
	require.NoError(t, err)
	task := asynq.NewTask(TaskForecastGenerate, payload)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, gen.input.ForecastType)
}

func TestNettingRefreshJobRequiresForecastType(t *testing.T) {
	job := NewNettingRefreshJob(&fakeComputer{}, nil, nil, nil)

	payload, err := json.Marshal(NettingRefreshPayload{})
	require.NoError(t, err)
	task := asynq.NewTask(TaskNettingRefresh, payload)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorkerRegistersNightlyRefresh(t *testing.T) {
	worker, err := NewWorker(WorkerConfig{
		ForecastJob:      NewForecastGenerateJob(&fakeGenerator{}, nil, nil),
		NettingJob:       NewNettingRefreshJob(&fakeComputer{}, nil, nil, nil),
		NettingCron:      "0 2 * * *",
		NettingCronScope: NettingRefreshPayload{ForecastType: "DPK"},
	})
	require.NoError(t, err)
	require.NotNil(t, worker)
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	_, err := NewWorker(WorkerConfig{NettingCron: "every night at two"})
	require.Error(t, err)
}

func TestNettingRefreshJobComputes(t *testing.T) {
	computer := &fakeComputer{results: make([]netting.Result, 2)}
	job := NewNettingRefreshJob(computer, nil, nil, nil)

	task, err := NewNettingRefreshTask(NettingRefreshPayload{ForecastType: "DPK", MaterialIDs: []string{"MAT-1"}})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "DPK", computer.input.ForecastType)
	require.Equal(t, []string{"MAT-1"}, computer.input.MaterialIDs)
}
