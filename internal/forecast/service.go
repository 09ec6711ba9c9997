package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListDemandHistory(ctx context.Context, from, to time.Time) ([]DemandRecord, error)
	ReplaceGenerated(ctx context.Context, fiscalYear int, forecastType string, records []Record) error
	ListForecasts(ctx context.Context, forecastType string, from, to time.Time) ([]Record, error)
}

// Service derives quarterly forecasts for the next fiscal year from
// prior-year historical demand.
type Service struct {
	repo     RepositoryPort
	strategy Strategy
	retry    retry.Policy
	logger   *slog.Logger
}

// NewService constructs the forecast generator.
func NewService(repo RepositoryPort, strategy Strategy, policy retry.Policy, logger *slog.Logger) *Service {
	if strategy == nil {
		strategy = DefaultStrategy()
	}
	return &Service{repo: repo, strategy: strategy, retry: policy, logger: logger}
}

// GenerateInput scopes a generation run.
type GenerateInput struct {
	FiscalYear   int
	ForecastType string
}

type groupKey struct {
	materialID string
	unitID     string
}

type groupAgg struct {
	totalQty float64
	count    int
	currency string
}

// Quarterly requirement dates land on the first day of months 1, 4, 7 and 10.
var quarterStartMonths = [4]time.Month{time.January, time.April, time.July, time.October}

// Generate reads all demand dated within fiscal year Y-1, averages each
// (material, unit) group per quarter and emits four forecast rows for year Y.
// Groups without history are skipped silently. Generated rows for the same
// (year, type) scope are replaced, not appended.
func (s *Service) Generate(ctx context.Context, input GenerateInput) ([]Record, error) {
	if input.FiscalYear <= 0 {
		return nil, fmt.Errorf("%w: fiscal year required", ErrValidation)
	}
	if input.ForecastType == "" {
		return nil, fmt.Errorf("%w: forecast type required", ErrValidation)
	}

	historyYear := input.FiscalYear - 1
	from := time.Date(historyYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(historyYear, time.December, 31, 23, 59, 59, 0, time.UTC)

	history, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]DemandRecord, error) {
		return s.repo.ListDemandHistory(ctx, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: load demand history %d: %w", historyYear, err)
	}

	groups := make(map[groupKey]*groupAgg)
	for _, row := range history {
		key := groupKey{materialID: row.MaterialID, unitID: shared.NormalizeUnit(row.UnitID)}
		agg, ok := groups[key]
		if !ok {
			agg = &groupAgg{}
			groups[key] = agg
		}
		agg.totalQty += row.DemandQty
		agg.count++
		if agg.currency == "" {
			agg.currency = row.Currency
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].materialID != keys[j].materialID {
			return keys[i].materialID < keys[j].materialID
		}
		return keys[i].unitID < keys[j].unitID
	})

	records := make([]Record, 0, len(keys)*4)
	for _, key := range keys {
		agg := groups[key]
		if agg.count == 0 {
			continue
		}
		// Annual history spread evenly over the four quarters of the target year.
		avgPerQuarter := agg.totalQty / 4
		currency := agg.currency
		if currency == "" {
			currency = DefaultCurrency
		}
		for _, month := range quarterStartMonths {
			records = append(records, Record{
				ForecastType:    input.ForecastType,
				MaterialID:      key.materialID,
				UnitID:          key.unitID,
				RequirementDate: time.Date(input.FiscalYear, month, 1, 0, 0, 0, 0, time.UTC),
				ForecastQty:     math.Round(s.strategy.Project(avgPerQuarter)),
				Currency:        currency,
			})
		}
	}

	if _, err := retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.ReplaceGenerated(ctx, input.FiscalYear, input.ForecastType, records)
	}); err != nil {
		return nil, fmt.Errorf("forecast: store generated forecast %d: %w", input.FiscalYear, err)
	}

	if s.logger != nil {
		s.logger.Info("forecast generated",
			slog.Int("fiscal_year", input.FiscalYear),
			slog.String("forecast_type", input.ForecastType),
			slog.Int("groups", len(keys)),
			slog.Int("records", len(records)))
	}
	return records, nil
}

// List returns forecast rows of a type within a date window.
func (s *Service) List(ctx context.Context, forecastType string, from, to time.Time) ([]Record, error) {
	rows, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Record, error) {
		return s.repo.ListForecasts(ctx, forecastType, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: list forecasts: %w", err)
	}
	return rows, nil
}
