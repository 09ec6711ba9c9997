package budget

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new approval record.
func (r *Repository) Create(ctx context.Context, approval Approval) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO dim_dpk_budget_approval
  (forecast_type, fiscal_year, total_budget, currency, status, submitted_by, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		approval.ForecastType, approval.FiscalYear, approval.TotalBudget, approval.Currency,
		string(approval.Status), approval.SubmittedBy, approval.SubmittedAt).Scan(&id)
	return id, err
}

// Get reads one approval by id.
func (r *Repository) Get(ctx context.Context, id int64) (Approval, error) {
	var a Approval
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, forecast_type, fiscal_year, total_budget, currency, status,
  submitted_by, submitted_at, COALESCE(approved_by,''), COALESCE(approved_at,'epoch'::timestamptz), COALESCE(rejection_reason,'')
FROM dim_dpk_budget_approval WHERE id=$1`, id).
		Scan(&a.ID, &a.ForecastType, &a.FiscalYear, &a.TotalBudget, &a.Currency, &status,
			&a.SubmittedBy, &a.SubmittedAt, &a.ApprovedBy, &a.ApprovedAt, &a.RejectionReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrNotFound
		}
		return Approval{}, err
	}
	a.Status = Status(status)
	return a, nil
}

// SetApproved stamps the approver on a still-pending row.
func (r *Repository) SetApproved(ctx context.Context, id int64, approvedBy string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE dim_dpk_budget_approval
SET status=$2, approved_by=$3, approved_at=$4
WHERE id=$1 AND status=$5`, id, string(StatusApproved), approvedBy, at, string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// SetRejected stamps the rejection on a still-pending row.
func (r *Repository) SetRejected(ctx context.Context, id int64, rejectedBy, reason string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE dim_dpk_budget_approval
SET status=$2, approved_by=$3, approved_at=$4, rejection_reason=$5
WHERE id=$1 AND status=$6`, id, string(StatusRejected), rejectedBy, at, reason, string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// List reads approvals, newest submission first. fiscalYear 0 lists all years.
func (r *Repository) List(ctx context.Context, fiscalYear int) ([]Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, forecast_type, fiscal_year, total_budget, currency, status,
  submitted_by, submitted_at, COALESCE(approved_by,''), COALESCE(approved_at,'epoch'::timestamptz), COALESCE(rejection_reason,'')
FROM dim_dpk_budget_approval
WHERE ($1 = 0 OR fiscal_year = $1)
ORDER BY submitted_at DESC`, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var approvals []Approval
	for rows.Next() {
		var a Approval
		var status string
		if err := rows.Scan(&a.ID, &a.ForecastType, &a.FiscalYear, &a.TotalBudget, &a.Currency, &status,
			&a.SubmittedBy, &a.SubmittedAt, &a.ApprovedBy, &a.ApprovedAt, &a.RejectionReason); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
