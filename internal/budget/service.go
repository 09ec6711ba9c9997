package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, approval Approval) (int64, error)
	Get(ctx context.Context, id int64) (Approval, error)
	SetApproved(ctx context.Context, id int64, approvedBy string, at time.Time) error
	SetRejected(ctx context.Context, id int64, rejectedBy, reason string, at time.Time) error
	List(ctx context.Context, fiscalYear int) ([]Approval, error)
}

// Service runs the budget approval state machine:
// Pending -> Approved | Rejected, transitions terminal.
type Service struct {
	repo   RepositoryPort
	retry  retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the budget workflow service.
func NewService(repo RepositoryPort, policy retry.Policy, logger *slog.Logger) *Service {
	return &Service{repo: repo, retry: policy, logger: logger, now: time.Now}
}

// SubmitInput carries a new budget submission.
type SubmitInput struct {
	ForecastType string
	FiscalYear   int
	TotalBudget  string
	Currency     string
	SubmittedBy  string
}

// Submit creates a Pending approval. A non-positive budget never reaches
// Pending; it is rejected up front.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Approval, error) {
	if input.ForecastType == "" || input.FiscalYear <= 0 || input.SubmittedBy == "" {
		return Approval{}, fmt.Errorf("%w: forecast type, fiscal year and submitter required", ErrValidation)
	}
	total, err := parseBudget(input.TotalBudget)
	if err != nil {
		return Approval{}, err
	}
	if total.Sign() <= 0 {
		return Approval{}, fmt.Errorf("%w: total budget must be positive", ErrValidation)
	}
	currency := input.Currency
	if currency == "" {
		currency = "IDR"
	}
	approval := Approval{
		ForecastType: input.ForecastType,
		FiscalYear:   input.FiscalYear,
		TotalBudget:  total,
		Currency:     currency,
		Status:       StatusPending,
		SubmittedBy:  input.SubmittedBy,
		SubmittedAt:  s.now(),
	}
	id, err := retry.Do(ctx, s.retry, func(ctx context.Context) (int64, error) {
		return s.repo.Create(ctx, approval)
	})
	if err != nil {
		return Approval{}, fmt.Errorf("budget: submit approval: %w", err)
	}
	approval.ID = id
	if s.logger != nil {
		s.logger.Info("budget submitted",
			slog.Int64("id", id),
			slog.Int("fiscal_year", input.FiscalYear),
			slog.String("forecast_type", input.ForecastType))
	}
	return approval, nil
}

// Approve transitions a Pending record to Approved, stamping the approver.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) (Approval, error) {
	if approvedBy == "" {
		return Approval{}, fmt.Errorf("%w: approver required", ErrValidation)
	}
	approval, err := s.get(ctx, id)
	if err != nil {
		return Approval{}, err
	}
	if approval.Status != StatusPending {
		return Approval{}, fmt.Errorf("%w: approval %d is %s", ErrInvalidState, id, approval.Status)
	}
	at := s.now()
	if _, err := retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.SetApproved(ctx, id, approvedBy, at)
	}); err != nil {
		return Approval{}, fmt.Errorf("budget: approve %d: %w", id, err)
	}
	approval.Status = StatusApproved
	approval.ApprovedBy = approvedBy
	approval.ApprovedAt = at
	return approval, nil
}

// Reject transitions a Pending record to Rejected. The reason is mandatory.
func (s *Service) Reject(ctx context.Context, id int64, rejectedBy, reason string) (Approval, error) {
	if reason == "" {
		return Approval{}, fmt.Errorf("%w: rejection reason required", ErrValidation)
	}
	approval, err := s.get(ctx, id)
	if err != nil {
		return Approval{}, err
	}
	if approval.Status != StatusPending {
		return Approval{}, fmt.Errorf("%w: approval %d is %s", ErrInvalidState, id, approval.Status)
	}
	at := s.now()
	if _, err := retry.Do(ctx, s.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.SetRejected(ctx, id, rejectedBy, reason, at)
	}); err != nil {
		return Approval{}, fmt.Errorf("budget: reject %d: %w", id, err)
	}
	approval.Status = StatusRejected
	approval.ApprovedBy = rejectedBy
	approval.ApprovedAt = at
	approval.RejectionReason = reason
	return approval, nil
}

// List returns approvals, optionally filtered by fiscal year, most recent
// submission first.
func (s *Service) List(ctx context.Context, fiscalYear int) ([]Approval, error) {
	approvals, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]Approval, error) {
		return s.repo.List(ctx, fiscalYear)
	})
	if err != nil {
		return nil, fmt.Errorf("budget: list approvals: %w", err)
	}
	return approvals, nil
}

func (s *Service) get(ctx context.Context, id int64) (Approval, error) {
	approval, err := retry.Do(ctx, s.retry, func(ctx context.Context) (Approval, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Approval{}, fmt.Errorf("budget: load approval %d: %w", id, err)
	}
	return approval, nil
}
