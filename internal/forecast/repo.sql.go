package forecast

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

// ListDemandHistory reads demand rows dated within [from, to].
func (r *Repository) ListDemandHistory(ctx context.Context, from, to time.Time) ([]DemandRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, material_id, COALESCE(unit_id,''), requirement_date, demand_qty, COALESCE(currency,'')
FROM demand WHERE requirement_date BETWEEN $1 AND $2 ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []DemandRecord
	for rows.Next() {
		var rec DemandRecord
		if err := rows.Scan(&rec.ID, &rec.MaterialID, &rec.UnitID, &rec.RequirementDate, &rec.DemandQty, &rec.Currency); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReplaceGenerated swaps the generated forecast rows for a (year, type) scope
// in one transaction.
func (r *Repository) ReplaceGenerated(ctx context.Context, fiscalYear int, forecastType string, records []Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forecast
WHERE forecast_type=$1 AND EXTRACT(YEAR FROM requirement_date)=$2`, forecastType, fiscalYear); err != nil {
			return err
		}
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `INSERT INTO forecast (forecast_type, material_id, unit_id, requirement_date, forecast_qty, currency)
VALUES ($1, $2, $3, $4, $5, $6)`, rec.ForecastType, rec.MaterialID, rec.UnitID, rec.RequirementDate, rec.ForecastQty, rec.Currency); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListForecasts reads forecast rows of a type within a date window.
func (r *Repository) ListForecasts(ctx context.Context, forecastType string, from, to time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, forecast_type, material_id, COALESCE(unit_id,''), requirement_date, forecast_qty, COALESCE(currency,'')
FROM forecast WHERE forecast_type=$1 AND requirement_date BETWEEN $2 AND $3 ORDER BY material_id, requirement_date`, forecastType, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ForecastType, &rec.MaterialID, &rec.UnitID, &rec.RequirementDate, &rec.ForecastQty, &rec.Currency); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
