package consolidation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusaplan/nusaplan/internal/shared"
)

// ERPForecastLine is the machine-generated side of a consolidation run.
type ERPForecastLine struct {
	MaterialID string
	UnitID     string
	Qty        float64
}

// Upload is a user-submitted forecast row. Read-only input; a human upload
// action created it.
type Upload struct {
	ID          int64
	UploadType  string
	MaterialID  string
	UnitID      string
	PeriodType  string
	PeriodValue string
	ForecastQty float64
	UnitPrice   decimal.NullDecimal
	UploadedBy  string
}

// Record is one consolidated demand row per natural key. ConsolidatedQty is
// always ERPForecastQty + UserForecastQty and TotalValue is
// ConsolidatedQty * UnitPrice.
type Record struct {
	ID              int64
	Key             shared.ConsolidationKey
	ERPForecastQty  float64
	UserForecastQty float64
	ConsolidatedQty float64
	// UnitPrice is unknown for most machine-generated lines; the zero
	// fallback silently zeroes TotalValue, a known data-quality gap.
	UnitPrice  decimal.NullDecimal
	TotalValue decimal.Decimal
	IsApproved bool
	ApprovedBy string
	ApprovedAt time.Time
}

// Filter narrows record listings.
type Filter struct {
	ForecastType string
	PeriodType   string
	PeriodValue  string
	ApprovedOnly bool
}

var (
	// ErrValidation indicates invalid consolidation input.
	ErrValidation = fmt.Errorf("consolidation: %w", shared.ErrValidation)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("consolidation: %w", shared.ErrNotFound)
)

// value computes qty * price with the documented zero fallback.
func value(qty float64, price decimal.NullDecimal) decimal.Decimal {
	if !price.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(qty).Mul(price.Decimal)
}
