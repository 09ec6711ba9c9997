package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListERPForecasts(ctx context.Context, forecastType, periodType, periodValue string) ([]ERPForecastLine, error)
	ListUploads(ctx context.Context, periodType, periodValue string) ([]Upload, error)
	UpsertRecords(ctx context.Context, records []Record) error
	ListRecords(ctx context.Context, filter Filter) ([]Record, error)
	Approve(ctx context.Context, ids []int64, approvedBy string, at time.Time) (int, error)
}

// Service merges ERP forecasts with user uploads into one per-material,
// per-period consolidated quantity.
type Service struct {
	repo   RepositoryPort
	retry  retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the demand consolidator.
func NewService(repo RepositoryPort, policy retry.Policy, logger *slog.Logger) *Service {
	return &Service{repo: repo, retry: policy, logger: logger, now: time.Now}
}

// Input scopes one consolidation run.
type Input struct {
	ForecastType string
	PeriodType   string
	PeriodValue  string
}

// Consolidate reads both forecast sources for the period, takes the union of
// (material, unit) keys and upserts one record per key. A key absent from one
// source contributes zero to that side. Running twice for the same period
// updates rows in place, it never duplicates them.
func (s *Service) Consolidate(ctx context.Context, input Input) ([]Record, error) {
	if input.ForecastType == "" || input.PeriodType == "" || input.PeriodValue == "" {
		return nil, fmt.Errorf("%w: forecast type, period type and period value required", ErrValidation)
	}

	erpLines, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]ERPForecastLine, error) {
		return s.repo.ListERPForecasts(ctx, input.ForecastType, input.PeriodType, input.PeriodValue)
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation: load erp forecasts: %w", err)
	}
	uploads, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Upload, error) {
		return s.repo.ListUploads(ctx, input.PeriodType, input.PeriodValue)
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation: load user uploads: %w", err)
	}

	erpQty := make(map[shared.ConsolidationKey]float64)
	for _, line := range erpLines {
		key := shared.ConsolidationKey{
			ForecastType: input.ForecastType,
			PeriodType:   input.PeriodType,
			PeriodValue:  input.PeriodValue,
			MaterialID:   line.MaterialID,
			UnitID:       line.UnitID,
		}.Normalize()
		erpQty[key] += line.Qty
	}

	userQty := make(map[shared.ConsolidationKey]float64)
	prices := make(map[shared.ConsolidationKey]Upload)
	for _, up := range uploads {
		key := shared.ConsolidationKey{
			ForecastType: input.ForecastType,
			PeriodType:   input.PeriodType,
			PeriodValue:  input.PeriodValue,
			MaterialID:   up.MaterialID,
			UnitID:       up.UnitID,
		}.Normalize()
		userQty[key] += up.ForecastQty
		if up.UnitPrice.Valid {
			if _, seen := prices[key]; !seen {
				prices[key] = up
			}
		}
	}

	keySet := make(map[shared.ConsolidationKey]struct{}, len(erpQty)+len(userQty))
	for key := range erpQty {
		keySet[key] = struct{}{}
	}
	for key := range userQty {
		keySet[key] = struct{}{}
	}
	keys := make([]shared.ConsolidationKey, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MaterialID != keys[j].MaterialID {
			return keys[i].MaterialID < keys[j].MaterialID
		}
		return keys[i].UnitID < keys[j].UnitID
	})

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		rec := Record{
			Key:             key,
			ERPForecastQty:  erpQty[key],
			UserForecastQty: userQty[key],
		}
		rec.ConsolidatedQty = rec.ERPForecastQty + rec.UserForecastQty
		if up, ok := prices[key]; ok {
			rec.UnitPrice = up.UnitPrice
		}
		rec.TotalValue = value(rec.ConsolidatedQty, rec.UnitPrice)
		records = append(records, rec)
	}

	if _, err := retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.UpsertRecords(ctx, records)
	}); err != nil {
		return nil, fmt.Errorf("consolidation: upsert records: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("consolidation run completed",
			slog.String("forecast_type", input.ForecastType),
			slog.String("period", input.PeriodValue),
			slog.Int("records", len(records)))
	}
	return records, nil
}

// Approve marks consolidation rows approved so netting can consume them.
func (s *Service) Approve(ctx context.Context, ids []int64, approvedBy string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one record id required", ErrValidation)
	}
	if approvedBy == "" {
		return 0, fmt.Errorf("%w: approver required", ErrValidation)
	}
	updated, err := retry.Do(ctx, s.retry, func(ctx context.Context) (int, error) {
		return s.repo.Approve(ctx, ids, approvedBy, s.now())
	})
	if err != nil {
		return 0, fmt.Errorf("consolidation: approve records: %w", err)
	}
	return updated, nil
}

// List returns consolidation rows matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	records, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Record, error) {
		return s.repo.ListRecords(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation: list records: %w", err)
	}
	return records, nil
}
