package consolidation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusaplan/nusaplan/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListERPForecasts aggregates forecast rows for the requested period.
// Period resolution happens in SQL: YEARLY matches the calendar year,
// QUARTERLY a "YYYY-Qn" value, MONTHLY a "YYYY-MM" value.
func (r *Repository) ListERPForecasts(ctx context.Context, forecastType, periodType, periodValue string) ([]ERPForecastLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT material_id, COALESCE(unit_id,''), SUM(forecast_qty)
FROM forecast
WHERE forecast_type=$1
  AND CASE $2
        WHEN 'YEARLY' THEN to_char(requirement_date, 'YYYY') = $3
        WHEN 'QUARTERLY' THEN to_char(requirement_date, 'YYYY-"Q"Q') = $3
        WHEN 'MONTHLY' THEN to_char(requirement_date, 'YYYY-MM') = $3
        ELSE false
      END
GROUP BY material_id, unit_id
ORDER BY material_id, unit_id`, forecastType, periodType, periodValue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ERPForecastLine
	for rows.Next() {
		var line ERPForecastLine
		if err := rows.Scan(&line.MaterialID, &line.UnitID, &line.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListUploads reads user forecast uploads for the period.
func (r *Repository) ListUploads(ctx context.Context, periodType, periodValue string) ([]Upload, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, upload_type, material_id, COALESCE(unit_id,''), period_type, period_value, forecast_qty, unit_price, COALESCE(uploaded_by,'')
FROM fact_dpk_upload WHERE period_type=$1 AND period_value=$2 ORDER BY id`, periodType, periodValue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var uploads []Upload
	for rows.Next() {
		var up Upload
		if err := rows.Scan(&up.ID, &up.UploadType, &up.MaterialID, &up.UnitID, &up.PeriodType, &up.PeriodValue, &up.ForecastQty, &up.UnitPrice, &up.UploadedBy); err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, rows.Err()
}

// UpsertRecords writes consolidation rows keyed by the natural key. Approval
// state of an existing row survives the recompute.
func (r *Repository) UpsertRecords(ctx context.Context, records []Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `INSERT INTO dim_dpk_demand_consolidation
  (forecast_type, period_type, period_value, material_id, unit_id,
   erp_forecast_qty, user_forecast_qty, consolidated_qty, unit_price, total_value, is_approved)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false)
ON CONFLICT (forecast_type, period_type, period_value, material_id, unit_id) DO UPDATE SET
  erp_forecast_qty = EXCLUDED.erp_forecast_qty,
  user_forecast_qty = EXCLUDED.user_forecast_qty,
  consolidated_qty = EXCLUDED.consolidated_qty,
  unit_price = EXCLUDED.unit_price,
  total_value = EXCLUDED.total_value`,
				rec.Key.ForecastType, rec.Key.PeriodType, rec.Key.PeriodValue, rec.Key.MaterialID, rec.Key.UnitID,
				rec.ERPForecastQty, rec.UserForecastQty, rec.ConsolidatedQty, rec.UnitPrice, rec.TotalValue); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRecords reads consolidation rows matching the filter.
func (r *Repository) ListRecords(ctx context.Context, filter Filter) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, forecast_type, period_type, period_value, material_id, unit_id,
  erp_forecast_qty, user_forecast_qty, consolidated_qty, unit_price, total_value,
  is_approved, COALESCE(approved_by,''), COALESCE(approved_at, 'epoch'::timestamptz)
FROM dim_dpk_demand_consolidation
WHERE ($1 = '' OR forecast_type = $1)
  AND ($2 = '' OR period_type = $2)
  AND ($3 = '' OR period_value = $3)
  AND (NOT $4 OR is_approved)
ORDER BY material_id, unit_id`, filter.ForecastType, filter.PeriodType, filter.PeriodValue, filter.ApprovedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Key.ForecastType, &rec.Key.PeriodType, &rec.Key.PeriodValue,
			&rec.Key.MaterialID, &rec.Key.UnitID, &rec.ERPForecastQty, &rec.UserForecastQty,
			&rec.ConsolidatedQty, &rec.UnitPrice, &rec.TotalValue, &rec.IsApproved,
			&rec.ApprovedBy, &rec.ApprovedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Approve flips is_approved for the given rows; already approved rows are
// left untouched. Returns the number of rows updated.
func (r *Repository) Approve(ctx context.Context, ids []int64, approvedBy string, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE dim_dpk_demand_consolidation
SET is_approved = true, approved_by = $2, approved_at = $3
WHERE id = ANY($1) AND NOT is_approved`, ids, approvedBy, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
