package budget

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nusaplan/nusaplan/internal/platform/retry"
)

type memoryBudgetRepo struct {
	approvals map[int64]Approval
	nextID    int64
}

func newMemoryBudgetRepo() *memoryBudgetRepo {
	return &memoryBudgetRepo{approvals: make(map[int64]Approval)}
}

func (r *memoryBudgetRepo) Create(ctx context.Context, approval Approval) (int64, error) {
	r.nextID++
	approval.ID = r.nextID
	r.approvals[approval.ID] = approval
	return approval.ID, nil
}

func (r *memoryBudgetRepo) Get(ctx context.Context, id int64) (Approval, error) {
	approval, ok := r.approvals[id]
	if !ok {
		return Approval{}, ErrNotFound
	}
	return approval, nil
}

func (r *memoryBudgetRepo) SetApproved(ctx context.Context, id int64, approvedBy string, at time.Time) error {
	approval, ok := r.approvals[id]
	if !ok {
		return ErrNotFound
	}
	if approval.Status != StatusPending {
		return ErrInvalidState
	}
	approval.Status = StatusApproved
	approval.ApprovedBy = approvedBy
	approval.ApprovedAt = at
	r.approvals[id] = approval
	return nil
}

func (r *memoryBudgetRepo) SetRejected(ctx context.Context, id int64, rejectedBy, reason string, at time.Time) error {
	approval, ok := r.approvals[id]
	if !ok {
		return ErrNotFound
	}
	if approval.Status != StatusPending {
		return ErrInvalidState
	}
	approval.Status = StatusRejected
	approval.ApprovedBy = rejectedBy
	approval.ApprovedAt = at
	approval.RejectionReason = reason
	r.approvals[id] = approval
	return nil
}

func (r *memoryBudgetRepo) List(ctx context.Context, fiscalYear int) ([]Approval, error) {
	var out []Approval
	for _, approval := range r.approvals {
		if fiscalYear != 0 && approval.FiscalYear != fiscalYear {
			continue
		}
		out = append(out, approval)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond}.WithSleep(func(ctx context.Context, d time.Duration) error {
		return nil
	})
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, fastRetry(), nil)
}

func TestSubmitRejectsNonPositiveBudget(t *testing.T) {
	svc := newTestService(newMemoryBudgetRepo())

	_, err := svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "0", SubmittedBy: "sari",
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "-100", SubmittedBy: "sari",
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitCreatesPending(t *testing.T) {
	repo := newMemoryBudgetRepo()
	svc := newTestService(repo)

	approval, err := svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "1500000.50", SubmittedBy: "sari",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, approval.Status)
	require.Equal(t, "IDR", approval.Currency)
	require.False(t, approval.SubmittedAt.IsZero())
	require.Len(t, repo.approvals, 1)
}

func TestApprovePendingStampsApprover(t *testing.T) {
	repo := newMemoryBudgetRepo()
	svc := newTestService(repo)

	submitted, err := svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "100", SubmittedBy: "sari",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), submitted.ID, "budi")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "budi", approved.ApprovedBy)
	require.False(t, approved.ApprovedAt.IsZero())
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	repo := newMemoryBudgetRepo()
	svc := newTestService(repo)

	submitted, err := svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "100", SubmittedBy: "sari",
	})
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), submitted.ID, "budi", "over ceiling")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), submitted.ID, "budi")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Reject(context.Background(), submitted.ID, "budi", "again")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newMemoryBudgetRepo()
	svc := newTestService(repo)

	submitted, err := svc.Submit(context.Background(), SubmitInput{
		ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "100", SubmittedBy: "sari",
	})
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), submitted.ID, "budi", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestListFiltersByYearNewestFirst(t *testing.T) {
	repo := newMemoryBudgetRepo()
	svc := newTestService(repo)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := 0
	svc.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Hour)
	}

	_, err := svc.Submit(context.Background(), SubmitInput{ForecastType: "DPK", FiscalYear: 2024, TotalBudget: "10", SubmittedBy: "sari"})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), SubmitInput{ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "20", SubmittedBy: "sari"})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), SubmitInput{ForecastType: "DPK", FiscalYear: 2025, TotalBudget: "30", SubmittedBy: "sari"})
	require.NoError(t, err)

	approvals, err := svc.List(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	require.True(t, approvals[0].SubmittedAt.After(approvals[1].SubmittedAt))

	all, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
