package netting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// ListApprovedDemand aggregates approved consolidation rows per material and
// unit. Unapproved rows never enter netting.
func (r *Repository) ListApprovedDemand(ctx context.Context, forecastType string, materialIDs []string) ([]GrossDemandLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT material_id, unit_id, SUM(consolidated_qty)
FROM dim_dpk_demand_consolidation
WHERE forecast_type=$1 AND is_approved
  AND (cardinality($2::text[]) = 0 OR material_id = ANY($2))
GROUP BY material_id, unit_id
ORDER BY material_id, unit_id`, forecastType, materialIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []GrossDemandLine
	for rows.Next() {
		var line GrossDemandLine
		if err := rows.Scan(&line.MaterialID, &line.UnitID, &line.Qty); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LatestInventorySnapshots reads the most recent snapshot row per material.
func (r *Repository) LatestInventorySnapshots(ctx context.Context) (map[string]InventorySnapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (material_id)
  material_id, on_hand_qty, unit_price, snapshot_date
FROM inventory_snapshot
ORDER BY material_id, snapshot_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	snapshots := make(map[string]InventorySnapshot)
	for rows.Next() {
		var snap InventorySnapshot
		if err := rows.Scan(&snap.MaterialID, &snap.OnHandQty, &snap.UnitPrice, &snap.SnapshotDate); err != nil {
			return nil, err
		}
		snapshots[snap.MaterialID] = snap
	}
	return snapshots, rows.Err()
}

// OpenPOQuantities sums open and confirmed purchase-order quantity per material.
func (r *Repository) OpenPOQuantities(ctx context.Context) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT material_id, SUM(quantity)
FROM purchase_order
WHERE status IN ('OPEN','CONFIRMED')
GROUP BY material_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	quantities := make(map[string]float64)
	for rows.Next() {
		var materialID string
		var qty float64
		if err := rows.Scan(&materialID, &qty); err != nil {
			return nil, err
		}
		quantities[materialID] = qty
	}
	return quantities, rows.Err()
}

// UpsertResults writes netting rows keyed by the natural key. The conflict
// update deliberately leaves is_converted_to_drp alone so a recompute cannot
// clear a flag set by a concurrent DRP conversion; the merge is atomic per
// row on the database side. The stored id and flag are scanned back into the
// slice so callers see what the database kept.
func (r *Repository) UpsertResults(ctx context.Context, results []Result) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range results {
			res := &results[i]
			if err := tx.QueryRow(ctx, `INSERT INTO dim_dpk_netting_result
  (forecast_type, material_id, unit_id, gross_demand_qty, available_inventory_qty,
   open_po_qty, net_requirement_qty, unit_price, net_value, is_converted_to_drp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
ON CONFLICT (forecast_type, material_id, unit_id) DO UPDATE SET
  gross_demand_qty = EXCLUDED.gross_demand_qty,
  available_inventory_qty = EXCLUDED.available_inventory_qty,
  open_po_qty = EXCLUDED.open_po_qty,
  net_requirement_qty = EXCLUDED.net_requirement_qty,
  unit_price = EXCLUDED.unit_price,
  net_value = EXCLUDED.net_value
RETURNING id, is_converted_to_drp`,
				res.Key.ForecastType, res.Key.MaterialID, res.Key.UnitID,
				res.GrossDemandQty, res.AvailableInventoryQty, res.OpenPOQty,
				res.NetRequirementQty, res.UnitPrice, res.NetValue).
				Scan(&res.ID, &res.IsConvertedToDRP); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListResults reads netting rows. onlyConvertible restricts to rows with a
// positive net requirement that have not been converted yet.
func (r *Repository) ListResults(ctx context.Context, forecastType string, onlyConvertible bool) ([]Result, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, forecast_type, material_id, unit_id,
  gross_demand_qty, available_inventory_qty, open_po_qty, net_requirement_qty,
  unit_price, net_value, is_converted_to_drp
FROM dim_dpk_netting_result
WHERE forecast_type=$1
  AND (NOT $2 OR (NOT is_converted_to_drp AND net_requirement_qty > 0))
ORDER BY material_id, unit_id`, forecastType, onlyConvertible)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.Key.ForecastType, &res.Key.MaterialID, &res.Key.UnitID,
			&res.GrossDemandQty, &res.AvailableInventoryQty, &res.OpenPOQty, &res.NetRequirementQty,
			&res.UnitPrice, &res.NetValue, &res.IsConvertedToDRP); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ConvertBatch inserts DRP demand rows and flips the source flags in one
// repeatable-read transaction. If any source row was converted concurrently
// the whole batch rolls back. A unique index on demand.source_result_id backs
// the flag guard: a racing conversion that already emitted a demand row for
// the same result surfaces as ErrAlreadyConverted, not a raw SQL error.
func (r *Repository) ConvertBatch(ctx context.Context, resultIDs []int64, demands []DRPDemand) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, demand := range demands {
			if _, err := tx.Exec(ctx, `INSERT INTO demand
  (material_id, unit_id, requirement_date, demand_qty, demand_type, is_selected_for_procurement, batch_ref, source_result_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				demand.MaterialID, demand.UnitID, demand.RequirementDate, demand.DemandQty,
				demand.DemandType, demand.IsSelectedForProcurement, demand.BatchRef, demand.SourceResultID); err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyConverted
				}
				return err
			}
		}

		tag, err := tx.Exec(ctx, `UPDATE dim_dpk_netting_result
SET is_converted_to_drp = true
WHERE id = ANY($1) AND NOT is_converted_to_drp`, resultIDs)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(resultIDs) {
			return ErrAlreadyConverted
		}
		return nil
	})
}
