package stats

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/platform/ttlcache"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	SubmissionCounts(ctx context.Context, fiscalYear int) (total, submitted int, err error)
	AccuracyRows(ctx context.Context, fiscalYear int) ([]AccuracyRow, error)
	YearDemandTotals(ctx context.Context, years []int) (map[int]YearTotal, error)
}

// Service serves the read-only aggregations behind the planning dashboard.
// Every method runs cache-first; misses collapse into one repository query
// per key via singleflight, and each query goes through the retry executor.
type Service struct {
	repo  RepositoryPort
	cache *ttlcache.Cache
	retry retry.Policy
	group singleflight.Group
}

// NewService wires the facade. The cache instance is injected, never global.
func NewService(repo RepositoryPort, cache *ttlcache.Cache, policy retry.Policy) *Service {
	return &Service{repo: repo, cache: cache, retry: policy}
}

// fetch resolves key from cache or loads it once per flight.
func (s *Service) fetch(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}
	resultChan := s.group.DoChan(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, value)
		return value, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

// SubmissionStats reports how many requesting units have submitted their DPK
// for the fiscal year.
func (s *Service) SubmissionStats(ctx context.Context, fiscalYear int) (SubmissionSummary, error) {
	if fiscalYear <= 0 {
		return SubmissionSummary{}, fmt.Errorf("%w: fiscal year required", ErrValidation)
	}
	key := fmt.Sprintf("dpk_submission_stats_%d", fiscalYear)
	value, err := s.fetch(ctx, key, func(ctx context.Context) (any, error) {
		counts, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([2]int, error) {
			total, submitted, err := s.repo.SubmissionCounts(ctx, fiscalYear)
			return [2]int{total, submitted}, err
		})
		if err != nil {
			return nil, err
		}
		return SubmissionSummary{
			FiscalYear:     fiscalYear,
			TotalUnits:     counts[0],
			SubmittedUnits: counts[1],
			CompletionPct:  pct(float64(counts[1]), float64(counts[0])),
		}, nil
	})
	if err != nil {
		return SubmissionSummary{}, fmt.Errorf("stats: load dpk submission statistics: %w", err)
	}
	return value.(SubmissionSummary), nil
}

// AccuracyBottomN returns the n worst-performing units by forecast accuracy,
// ascending.
func (s *Service) AccuracyBottomN(ctx context.Context, fiscalYear, n int) ([]AccuracyRow, error) {
	if fiscalYear <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: fiscal year and positive n required", ErrValidation)
	}
	key := fmt.Sprintf("dpk_accuracy_bottom_%d_%d", fiscalYear, n)
	value, err := s.fetch(ctx, key, func(ctx context.Context) (any, error) {
		rows, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]AccuracyRow, error) {
			return s.repo.AccuracyRows(ctx, fiscalYear)
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: no accuracy rows for %d", ErrInsufficientData, fiscalYear)
		}
		ranked := append([]AccuracyRow(nil), rows...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].AccuracyPct < ranked[j].AccuracyPct })
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		for i := range ranked {
			ranked[i].AccuracyPct = round1(ranked[i].AccuracyPct)
		}
		return ranked, nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: load forecast accuracy ranking: %w", err)
	}
	return value.([]AccuracyRow), nil
}

// YoY compares total demand of a fiscal year against the year before.
// Both years must have data; an incomplete window is a hard error, unlike the
// forecast generator's silent skip.
func (s *Service) YearOverYear(ctx context.Context, fiscalYear int) (YoYComparison, error) {
	if fiscalYear <= 0 {
		return YoYComparison{}, fmt.Errorf("%w: fiscal year required", ErrValidation)
	}
	key := fmt.Sprintf("dpk_yoy_%d", fiscalYear)
	value, err := s.fetch(ctx, key, func(ctx context.Context) (any, error) {
		totals, err := retry.Do(ctx, s.retry, func(ctx context.Context) (map[int]YearTotal, error) {
			return s.repo.YearDemandTotals(ctx, []int{fiscalYear - 1, fiscalYear})
		})
		if err != nil {
			return nil, err
		}
		current, okCurrent := totals[fiscalYear]
		previous, okPrevious := totals[fiscalYear-1]
		if !okCurrent || !okPrevious {
			return nil, fmt.Errorf("%w: need demand for both %d and %d", ErrInsufficientData, fiscalYear-1, fiscalYear)
		}
		return YoYComparison{
			FiscalYear:  fiscalYear,
			PrevYear:    fiscalYear - 1,
			CurrentQty:  current.TotalQty,
			PreviousQty: previous.TotalQty,
			DeltaPct:    pct(current.TotalQty-previous.TotalQty, previous.TotalQty),
		}, nil
	})
	if err != nil {
		return YoYComparison{}, fmt.Errorf("stats: load year-over-year comparison: %w", err)
	}
	return value.(YoYComparison), nil
}
