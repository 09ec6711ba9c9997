package netting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusaplan/nusaplan/internal/shared"
)

// GrossDemandLine is an approved consolidated demand row entering netting.
type GrossDemandLine struct {
	MaterialID string
	UnitID     string
	Qty        float64
}

// InventorySnapshot is the most recent on-hand position of one material,
// with the reference unit price used for net values.
type InventorySnapshot struct {
	MaterialID   string
	OnHandQty    float64
	UnitPrice    decimal.NullDecimal
	SnapshotDate time.Time
}

// Result is one netting row per natural key. NetRequirementQty is always
// max(0, gross - inventory - openPO); there is no backorder concept.
// IsConvertedToDRP flips exactly once, by the DRP emitter, and survives
// recomputation.
type Result struct {
	ID                    int64
	Key                   shared.NettingKey
	GrossDemandQty        float64
	AvailableInventoryQty float64
	OpenPOQty             float64
	NetRequirementQty     float64
	UnitPrice             decimal.NullDecimal
	NetValue              decimal.Decimal
	IsConvertedToDRP      bool
}

// DRPDemand is a procurement-ready demand row emitted from a positive
// netting result.
type DRPDemand struct {
	ID                       int64
	MaterialID               string
	UnitID                   string
	RequirementDate          time.Time
	DemandQty                float64
	DemandType               string
	IsSelectedForProcurement bool
	BatchRef                 string
	SourceResultID           int64
}

// DemandTypeDRP marks demand rows produced by DRP conversion.
const DemandTypeDRP = "DRP"

// DefaultLeadTime is the fixed procurement lead time applied to DRP rows.
const DefaultLeadTime = 30 * 24 * time.Hour

var (
	// ErrValidation indicates invalid netting input.
	ErrValidation = fmt.Errorf("netting: %w", shared.ErrValidation)
	// ErrAlreadyConverted occurs when a conversion races another batch.
	ErrAlreadyConverted = fmt.Errorf("netting: result already converted: %w", shared.ErrInvalidState)
)

// netValue computes qty * snapshot price with the documented zero fallback.
func netValue(qty float64, price decimal.NullDecimal) decimal.Decimal {
	if !price.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(qty).Mul(price.Decimal)
}
