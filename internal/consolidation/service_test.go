package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
	"github.com/nusaplan/nusaplan/internal/shared"
)

type memoryConsolidationRepo struct {
	erpLines []ERPForecastLine
	uploads  []Upload
	records  map[shared.ConsolidationKey]Record
	nextID   int64
	upserts  int
}

func newMemoryConsolidationRepo() *memoryConsolidationRepo {
	return &memoryConsolidationRepo{records: make(map[shared.ConsolidationKey]Record)}
}

func (r *memoryConsolidationRepo) ListERPForecasts(ctx context.Context, forecastType, periodType, periodValue string) ([]ERPForecastLine, error) {
	return r.erpLines, nil
}

func (r *memoryConsolidationRepo) ListUploads(ctx context.Context, periodType, periodValue string) ([]Upload, error) {
	return r.uploads, nil
}

func (r *memoryConsolidationRepo) UpsertRecords(ctx context.Context, records []Record) error {
	r.upserts++
	for _, rec := range records {
		if existing, ok := r.records[rec.Key]; ok {
			rec.ID = existing.ID
			rec.IsApproved = existing.IsApproved
			rec.ApprovedBy = existing.ApprovedBy
			rec.ApprovedAt = existing.ApprovedAt
		} else {
			r.nextID++
			rec.ID = r.nextID
		}
		r.records[rec.Key] = rec
	}
	return nil
}

func (r *memoryConsolidationRepo) ListRecords(ctx context.Context, filter Filter) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		if filter.ApprovedOnly && !rec.IsApproved {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryConsolidationRepo) Approve(ctx context.Context, ids []int64, approvedBy string, at time.Time) (int, error) {
	updated := 0
	for key, rec := range r.records {
		for _, id := range ids {
			if rec.ID == id && !rec.IsApproved {
				rec.IsApproved = true
				rec.ApprovedBy = approvedBy
				rec.ApprovedAt = at
				r.records[key] = rec
				updated++
			}
		}
	}
	return updated, nil
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}.WithSleep(func(ctx context.Context, d time.Duration) error {
		return nil
	})
}

func price(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

func TestConsolidateUnionSum(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", UnitID: "U1", Qty: 10}}
	repo.uploads = []Upload{
		{MaterialID: "M1", UnitID: "U1", ForecastQty: 5},
		{MaterialID: "M2", UnitID: "U2", ForecastQty: 7},
	}
	svc := NewService(repo, fastRetry(), nil)

	records, err := svc.Consolidate(context.Background(), Input{ForecastType: "DPK", PeriodType: shared.PeriodQuarterly, PeriodValue: "2025-Q1"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "M1", records[0].Key.MaterialID)
	require.Equal(t, float64(10), records[0].ERPForecastQty)
	require.Equal(t, float64(5), records[0].UserForecastQty)
	require.Equal(t, float64(15), records[0].ConsolidatedQty)

	require.Equal(t, "M2", records[1].Key.MaterialID)
	require.Equal(t, float64(0), records[1].ERPForecastQty)
	require.Equal(t, float64(7), records[1].UserForecastQty)
	require.Equal(t, float64(7), records[1].ConsolidatedQty)
}

func TestConsolidateComputesTotalValue(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", UnitID: "U1", Qty: 10}}
	repo.uploads = []Upload{{MaterialID: "M1", UnitID: "U1", ForecastQty: 5, UnitPrice: price("2.50")}}
	svc := NewService(repo, fastRetry(), nil)

	records, err := svc.Consolidate(context.Background(), Input{ForecastType: "DPK", PeriodType: shared.PeriodQuarterly, PeriodValue: "2025-Q1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].UnitPrice.Valid)
	require.True(t, records[0].TotalValue.Equal(decimal.RequireFromString("37.5")))
}

func TestConsolidateUnknownPriceZeroesValue(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", UnitID: "U1", Qty: 10}}
	svc := NewService(repo, fastRetry(), nil)

	records, err := svc.Consolidate(context.Background(), Input{ForecastType: "DPK", PeriodType: shared.PeriodQuarterly, PeriodValue: "2025-Q1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, records[0].UnitPrice.Valid)
	require.True(t, records[0].TotalValue.IsZero())
}

func TestConsolidateRerunDoesNotDuplicate(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", UnitID: "U1", Qty: 10}}
	svc := NewService(repo, fastRetry(), nil)

	input := Input{ForecastType: "DPK", PeriodType: shared.PeriodQuarterly, PeriodValue: "2025-Q1"}
	_, err := svc.Consolidate(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.Consolidate(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, 2, repo.upserts)
	require.Len(t, repo.records, 1)
}

func TestConsolidateRerunPreservesApproval(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", UnitID: "U1", Qty: 10}}
	svc := NewService(repo, fastRetry(), nil)

	input := Input{ForecastType: "DPK", PeriodType: shared.PeriodQuarterly, PeriodValue: "2025-Q1"}
	_, err := svc.Consolidate(context.Background(), input)
	require.NoError(t, err)

	var ids []int64
	for _, rec := range repo.records {
		ids = append(ids, rec.ID)
	}
	updated, err := svc.Approve(context.Background(), ids, "budi")
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	repo.erpLines[0].Qty = 20
	_, err = svc.Consolidate(context.Background(), input)
	require.NoError(t, err)

	stored, err := svc.List(context.Background(), Filter{ApprovedOnly: true})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, float64(20), stored[0].ERPForecastQty)
	require.Equal(t, "budi", stored[0].ApprovedBy)
}

func TestConsolidateGroupsMissingUnitAsGeneral(t *testing.T) {
	repo := newMemoryConsolidationRepo()
	repo.erpLines = []ERPForecastLine{{MaterialID: "M1", Qty: 3}}
	repo.uploads = []Upload{{MaterialID: "M1", ForecastQty: 4}}
	svc := NewService(repo, fastRetry(), nil)

	records, err := svc.Consolidate(context.Background(), Input{ForecastType: "DPK", PeriodType: shared.PeriodMonthly, PeriodValue: "2025-01"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, shared.UnitGeneral, records[0].Key.UnitID)
	require.Equal(t, float64(7), records[0].ConsolidatedQty)
}

func TestApproveValidation(t *testing.T) {
	svc := NewService(newMemoryConsolidationRepo(), fastRetry(), nil)

	_, err := svc.Approve(context.Background(), nil, "budi")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Approve(context.Background(), []int64{1}, "")
	require.ErrorIs(t, err, ErrValidation)
}
