package budget

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusaplan/nusaplan/internal/shared"
)

// Approval lifecycle statuses. Approved and Rejected are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Approval tracks submission and sign-off of a fiscal-year budget tied to a
// forecast type. A re-submission creates a new record; terminal records are
// never edited.
type Approval struct {
	ID              int64
	ForecastType    string
	FiscalYear      int
	TotalBudget     decimal.Decimal
	Currency        string
	Status          Status
	SubmittedBy     string
	SubmittedAt     time.Time
	ApprovedBy      string
	ApprovedAt      time.Time
	RejectionReason string
}

var (
	// ErrInvalidState occurs when an approval action hits a terminal record.
	ErrInvalidState = fmt.Errorf("budget: %w", shared.ErrInvalidState)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("budget: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("budget: %w", shared.ErrValidation)
)

func parseBudget(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: total budget required", ErrValidation)
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed total budget %q", ErrValidation, raw)
	}
	return total, nil
}
