package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nusaplan/nusaplan/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskForecastGenerate schedules a statistical forecast generation run.
	TaskForecastGenerate = "forecast:generate"
	// TaskNettingRefresh schedules a netting recomputation.
	TaskNettingRefresh = "netting:refresh"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ForecastGeneratePayload scopes a forecast generation run.
type ForecastGeneratePayload struct {
	FiscalYear   int    `json:"fiscal_year"`
	ForecastType string `json:"forecast_type"`
}

// NewForecastGenerateTask constructs an Asynq task.
func NewForecastGenerateTask(payload ForecastGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastGenerate, data, asynq.Queue(QueueDefault)), nil
}

// NettingRefreshPayload scopes a netting recomputation run.
type NettingRefreshPayload struct {
	ForecastType string   `json:"forecast_type"`
	MaterialIDs  []string `json:"material_ids,omitempty"`
}

// NewNettingRefreshTask constructs an Asynq task.
func NewNettingRefreshTask(payload NettingRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNettingRefresh, data, asynq.Queue(QueueDefault)), nil
}
