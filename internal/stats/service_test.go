package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/platform/ttlcache"
	"github.com/nusaplan/nusaplan/internal/shared"
)

type memoryStatsRepo struct {
	totalUnits     int
	submittedUnits int
	accuracy       map[int][]AccuracyRow
	totals         map[int]YearTotal

	submissionCalls int
	accuracyCalls   int
	totalsCalls     int

	failNextErr error
}

func newMemoryStatsRepo() *memoryStatsRepo {
	return &memoryStatsRepo{
		accuracy: make(map[int][]AccuracyRow),
		totals:   make(map[int]YearTotal),
	}
}

func (r *memoryStatsRepo) takeErr() error {
	err := r.failNextErr
	r.failNextErr = nil
	return err
}

func (r *memoryStatsRepo) SubmissionCounts(ctx context.Context, fiscalYear int) (int, int, error) {
	r.submissionCalls++
	if err := r.takeErr(); err != nil {
		return 0, 0, err
	}
	return r.totalUnits, r.submittedUnits, nil
}

func (r *memoryStatsRepo) AccuracyRows(ctx context.Context, fiscalYear int) ([]AccuracyRow, error) {
	r.accuracyCalls++
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	return r.accuracy[fiscalYear], nil
}

func (r *memoryStatsRepo) YearDemandTotals(ctx context.Context, years []int) (map[int]YearTotal, error) {
	r.totalsCalls++
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := make(map[int]YearTotal)
	for _, year := range years {
		if t, ok := r.totals[year]; ok {
			out[year] = t
		}
	}
	return out, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestService(repo *memoryStatsRepo) *Service {
	policy := retry.DefaultPolicy().WithSleep(noSleep)
	return NewService(repo, ttlcache.New(ttlcache.DefaultTTL), policy)
}

func TestSubmissionStatsComputesCompletion(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totalUnits = 12
	repo.submittedUnits = 7

	svc := newTestService(repo)

	summary, err := svc.SubmissionStats(context.Background(), 2025)
	require.NoError(t, err)
	require.Equal(t, 12, summary.TotalUnits)
	require.Equal(t, 7, summary.SubmittedUnits)
	require.InDelta(t, 58.3, summary.CompletionPct, 1e-9)
}

func TestSubmissionStatsZeroUnits(t *testing.T) {
	repo := newMemoryStatsRepo()

	svc := newTestService(repo)

	summary, err := svc.SubmissionStats(context.Background(), 2025)
	require.NoError(t, err)
	require.Zero(t, summary.CompletionPct)
}

func TestSubmissionStatsCacheHitSkipsRepository(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totalUnits = 10
	repo.submittedUnits = 10

	svc := newTestService(repo)

	_, err := svc.SubmissionStats(context.Background(), 2025)
	require.NoError(t, err)
	_, err = svc.SubmissionStats(context.Background(), 2025)
	require.NoError(t, err)
	require.Equal(t, 1, repo.submissionCalls)

	// A different year is a different cache key.
	_, err = svc.SubmissionStats(context.Background(), 2024)
	require.NoError(t, err)
	require.Equal(t, 2, repo.submissionCalls)
}

func TestSubmissionStatsRetriesTransientFailure(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totalUnits = 4
	repo.submittedUnits = 2
	repo.failNextErr = errors.New("connection reset")

	svc := newTestService(repo)

	summary, err := svc.SubmissionStats(context.Background(), 2025)
	require.NoError(t, err)
	require.InDelta(t, 50.0, summary.CompletionPct, 1e-9)
	require.Equal(t, 2, repo.submissionCalls)
}

func TestAccuracyBottomNOrdersAscending(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.accuracy[2025] = []AccuracyRow{
		{UnitID: "U1", UnitName: "Pabrik Tuban", AccuracyPct: 91.25},
		{UnitID: "U2", UnitName: "Pabrik Gresik", AccuracyPct: 42.0},
		{UnitID: "U3", UnitName: "Pabrik Rembang", AccuracyPct: 67.8},
	}

	svc := newTestService(repo)

	rows, err := svc.AccuracyBottomN(context.Background(), 2025, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "U2", rows[0].UnitID)
	require.Equal(t, "U3", rows[1].UnitID)
	require.InDelta(t, 91.3, round1(91.25), 1e-9)
}

func TestAccuracyBottomNLargerThanDataset(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.accuracy[2025] = []AccuracyRow{{UnitID: "U1", AccuracyPct: 80}}

	svc := newTestService(repo)

	rows, err := svc.AccuracyBottomN(context.Background(), 2025, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestAccuracyBottomNInsufficientData(t *testing.T) {
	repo := newMemoryStatsRepo()

	svc := newTestService(repo)

	_, err := svc.AccuracyBottomN(context.Background(), 2025, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientData)
}

func TestYearOverYearDelta(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totals[2024] = YearTotal{FiscalYear: 2024, TotalQty: 400}
	repo.totals[2025] = YearTotal{FiscalYear: 2025, TotalQty: 500}

	svc := newTestService(repo)

	comparison, err := svc.YearOverYear(context.Background(), 2025)
	require.NoError(t, err)
	require.InDelta(t, 25.0, comparison.DeltaPct, 1e-9)
	require.Equal(t, 2024, comparison.PrevYear)
}

func TestYearOverYearNegativeDeltaRoundsHalfUp(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totals[2024] = YearTotal{FiscalYear: 2024, TotalQty: 80}
	repo.totals[2025] = YearTotal{FiscalYear: 2025, TotalQty: 7}

	svc := newTestService(repo)

	// (7-80)/80 = -91.25%; half-up keeps it at -91.2, not -91.3.
	comparison, err := svc.YearOverYear(context.Background(), 2025)
	require.NoError(t, err)
	require.InDelta(t, -91.2, comparison.DeltaPct, 1e-9)
}

func TestYearOverYearMissingYearIsHardError(t *testing.T) {
	repo := newMemoryStatsRepo()
	repo.totals[2025] = YearTotal{FiscalYear: 2025, TotalQty: 500}

	svc := newTestService(repo)

	_, err := svc.YearOverYear(context.Background(), 2025)
	require.ErrorIs(t, err, shared.ErrInsufficientData)
	// Errors are never cached; the next call hits the repository again.
	_, err = svc.YearOverYear(context.Background(), 2025)
	require.ErrorIs(t, err, shared.ErrInsufficientData)
	require.Equal(t, 2, repo.totalsCalls)
}

func TestStatsValidation(t *testing.T) {
	svc := newTestService(newMemoryStatsRepo())

	_, err := svc.SubmissionStats(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AccuracyBottomN(context.Background(), 2025, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.YearOverYear(context.Background(), -1)
	require.ErrorIs(t, err, shared.ErrValidation)
}
