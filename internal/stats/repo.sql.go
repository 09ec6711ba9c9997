package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SubmissionCounts counts active requesting units and how many of them have a
// submitted DPK for the fiscal year.
func (r *Repository) SubmissionCounts(ctx context.Context, fiscalYear int) (int, int, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM dim_unit WHERE is_active),
			(SELECT COUNT(DISTINCT s.unit_id)
			   FROM fact_dpk_submission s
			   JOIN dim_unit u ON u.id = s.unit_id AND u.is_active
			  WHERE s.fiscal_year = $1 AND s.status = 'SUBMITTED')
	`
	var total, submitted int
	if err := r.pool.QueryRow(ctx, query, fiscalYear).Scan(&total, &submitted); err != nil {
		return 0, 0, fmt.Errorf("stats: count dpk submissions: %w", err)
	}
	return total, submitted, nil
}

// AccuracyRows returns per-unit forecast accuracy for the fiscal year.
func (r *Repository) AccuracyRows(ctx context.Context, fiscalYear int) ([]AccuracyRow, error) {
	const query = `
		SELECT a.unit_id, u.name, a.accuracy_pct
		FROM fact_forecast_accuracy a
		JOIN dim_unit u ON u.id = a.unit_id
		WHERE a.fiscal_year = $1
		ORDER BY a.accuracy_pct ASC, a.unit_id ASC
	`
	rows, err := r.pool.Query(ctx, query, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("stats: query forecast accuracy: %w", err)
	}
	defer rows.Close()

	var out []AccuracyRow
	for rows.Next() {
		var row AccuracyRow
		if err := rows.Scan(&row.UnitID, &row.UnitName, &row.AccuracyPct); err != nil {
			return nil, fmt.Errorf("stats: scan forecast accuracy: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate forecast accuracy: %w", err)
	}
	return out, nil
}

// YearDemandTotals sums demand per fiscal year. Years without rows are absent
// from the result map.
func (r *Repository) YearDemandTotals(ctx context.Context, years []int) (map[int]YearTotal, error) {
	const query = `
		SELECT fiscal_year, SUM(total_qty)
		FROM fact_yoy_demand
		WHERE fiscal_year = ANY($1)
		GROUP BY fiscal_year
	`
	rows, err := r.pool.Query(ctx, query, years)
	if err != nil {
		return nil, fmt.Errorf("stats: query yearly demand: %w", err)
	}
	defer rows.Close()

	totals := make(map[int]YearTotal, len(years))
	for rows.Next() {
		var t YearTotal
		if err := rows.Scan(&t.FiscalYear, &t.TotalQty); err != nil {
			return nil, fmt.Errorf("stats: scan yearly demand: %w", err)
		}
		totals[t.FiscalYear] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: iterate yearly demand: %w", err)
	}
	return totals, nil
}
