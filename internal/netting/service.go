package netting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListApprovedDemand(ctx context.Context, forecastType string, materialIDs []string) ([]GrossDemandLine, error)
	LatestInventorySnapshots(ctx context.Context) (map[string]InventorySnapshot, error)
	OpenPOQuantities(ctx context.Context) (map[string]float64, error)
	UpsertResults(ctx context.Context, results []Result) error
	ListResults(ctx context.Context, forecastType string, onlyConvertible bool) ([]Result, error)
	ConvertBatch(ctx context.Context, resultIDs []int64, demands []DRPDemand) error
}

// Service computes net procurement requirements and emits DRP demand.
type Service struct {
	repo   RepositoryPort
	retry  retry.Policy
	logger *slog.Logger
	now    func() time.Time

	leadTime time.Duration
}

// NewService constructs the netting calculator.
func NewService(repo RepositoryPort, policy retry.Policy, logger *slog.Logger, leadTime time.Duration) *Service {
	if leadTime <= 0 {
		leadTime = DefaultLeadTime
	}
	return &Service{repo: repo, retry: policy, logger: logger, now: time.Now, leadTime: leadTime}
}

// ComputeInput scopes one netting run.
type ComputeInput struct {
	ForecastType string
	MaterialIDs  []string
}

// Compute nets approved gross demand against the latest inventory snapshot
// and open purchase orders.
//
// The three reads are independent and are not wrapped in one transaction, so
// they may reflect slightly different points in time. That eventual-consistency
// gap is accepted; do not add cross-source locking here.
func (s *Service) Compute(ctx context.Context, input ComputeInput) ([]Result, error) {
	if input.ForecastType == "" {
		return nil, fmt.Errorf("%w: forecast type required", ErrValidation)
	}

	demand, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]GrossDemandLine, error) {
		return s.repo.ListApprovedDemand(ctx, input.ForecastType, input.MaterialIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("netting: load approved demand: %w", err)
	}
	snapshots, err := retry.Do(ctx, s.retry, func(ctx context.Context) (map[string]InventorySnapshot, error) {
		return s.repo.LatestInventorySnapshots(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("netting: load inventory snapshots: %w", err)
	}
	openPO, err := retry.Do(ctx, s.retry, func(ctx context.Context) (map[string]float64, error) {
		return s.repo.OpenPOQuantities(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("netting: load open purchase orders: %w", err)
	}

	results := make([]Result, 0, len(demand))
	for _, line := range demand {
		key := shared.NettingKey{
			ForecastType: input.ForecastType,
			MaterialID:   line.MaterialID,
			UnitID:       line.UnitID,
		}.Normalize()

		// Materials without supply data net against zero: the full gross
		// demand becomes net requirement.
		snapshot := snapshots[line.MaterialID]
		available := snapshot.OnHandQty
		onOrder := openPO[line.MaterialID]

		net := line.Qty - available - onOrder
		if net < 0 {
			net = 0
		}
		results = append(results, Result{
			Key:                   key,
			GrossDemandQty:        line.Qty,
			AvailableInventoryQty: available,
			OpenPOQty:             onOrder,
			NetRequirementQty:     net,
			UnitPrice:             snapshot.UnitPrice,
			NetValue:              netValue(net, snapshot.UnitPrice),
		})
	}

	// The upsert scans the stored id and conversion flag back into each row,
	// so previously converted rows report as converted in the response.
	if _, err := retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.UpsertResults(ctx, results)
	}); err != nil {
		return nil, fmt.Errorf("netting: upsert results: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("netting computed",
			slog.String("forecast_type", input.ForecastType),
			slog.Int("results", len(results)))
	}
	return results, nil
}

// ConvertInput scopes one DRP conversion batch.
type ConvertInput struct {
	ForecastType string
	// ResultIDs narrows conversion to specific netting rows. Empty converts
	// every eligible row of the forecast type.
	ResultIDs []int64
}

// ConvertToDRP turns positive, not-yet-converted netting results into DRP
// demand rows and flips their conversion flags in the same transaction.
// Partial success is impossible: either every row of the batch lands with
// its flag set, or nothing does. A second run over the same results selects
// zero rows.
func (s *Service) ConvertToDRP(ctx context.Context, input ConvertInput) ([]DRPDemand, error) {
	if input.ForecastType == "" {
		return nil, fmt.Errorf("%w: forecast type required", ErrValidation)
	}

	eligible, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Result, error) {
		return s.repo.ListResults(ctx, input.ForecastType, true)
	})
	if err != nil {
		return nil, fmt.Errorf("netting: load convertible results: %w", err)
	}
	if len(input.ResultIDs) > 0 {
		wanted := make(map[int64]struct{}, len(input.ResultIDs))
		for _, id := range input.ResultIDs {
			wanted[id] = struct{}{}
		}
		filtered := eligible[:0]
		for _, res := range eligible {
			if _, ok := wanted[res.ID]; ok {
				filtered = append(filtered, res)
			}
		}
		eligible = filtered
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	batchRef := uuid.NewString()
	requirementDate := s.now().Add(s.leadTime)
	ids := make([]int64, 0, len(eligible))
	demands := make([]DRPDemand, 0, len(eligible))
	for _, res := range eligible {
		ids = append(ids, res.ID)
		demands = append(demands, DRPDemand{
			MaterialID:               res.Key.MaterialID,
			UnitID:                   res.Key.UnitID,
			RequirementDate:          requirementDate,
			DemandQty:                res.NetRequirementQty,
			DemandType:               DemandTypeDRP,
			IsSelectedForProcurement: true,
			BatchRef:                 batchRef,
			SourceResultID:           res.ID,
		})
	}

	// The batch write is deliberately not retried: ConvertBatch is
	// transactional but not idempotent across attempts that may have
	// committed before a network error surfaced.
	if err := s.repo.ConvertBatch(ctx, ids, demands); err != nil {
		return nil, fmt.Errorf("netting: convert batch %s: %w", batchRef, err)
	}

	if s.logger != nil {
		s.logger.Info("drp conversion completed",
			slog.String("forecast_type", input.ForecastType),
			slog.String("batch_ref", batchRef),
			slog.Int("rows", len(demands)))
	}
	return demands, nil
}

// List returns netting rows of a forecast type.
func (s *Service) List(ctx context.Context, forecastType string) ([]Result, error) {
	results, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Result, error) {
		return s.repo.ListResults(ctx, forecastType, false)
	})
	if err != nil {
		return nil, fmt.Errorf("netting: list results: %w", err)
	}
	return results, nil
}
