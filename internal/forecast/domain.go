package forecast

import (
	"fmt"
	"time"

	"github.com/nusaplan/nusaplan/internal/shared"
)

// DemandRecord is a historical demand row used as forecasting input.
type DemandRecord struct {
	ID              int64
	MaterialID      string
	UnitID          string
	RequirementDate time.Time
	DemandQty       float64
	Currency        string
}

// Record is an ERP-generated quarterly forecast row. Records are write-once:
// later consolidation runs supersede them, they are never mutated in place.
type Record struct {
	ID              int64
	ForecastType    string
	MaterialID      string
	UnitID          string
	RequirementDate time.Time
	ForecastQty     float64
	Currency        string
}

// DefaultCurrency is used when historical rows carry no currency.
const DefaultCurrency = "IDR"

var (
	// ErrValidation indicates invalid generation input.
	ErrValidation = fmt.Errorf("forecast: %w", shared.ErrValidation)
)
