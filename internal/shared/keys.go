package shared

import "strings"

// Period types used by consolidation and netting scopes.
const (
	PeriodMonthly   = "MONTHLY"
	PeriodQuarterly = "QUARTERLY"
	PeriodYearly    = "YEARLY"
)

// UnitGeneral is the placeholder unit for demand not tied to a requesting unit.
const UnitGeneral = "GENERAL"

// NormalizeUnit maps an absent requesting unit to UnitGeneral.
func NormalizeUnit(unitID string) string {
	if strings.TrimSpace(unitID) == "" {
		return UnitGeneral
	}
	return unitID
}

// ConsolidationKey is the natural key of a consolidation row. Upserts are
// keyed by this tuple, never by surrogate id.
type ConsolidationKey struct {
	ForecastType string
	PeriodType   string
	PeriodValue  string
	MaterialID   string
	UnitID       string
}

// NettingKey is the natural key of a netting result row.
type NettingKey struct {
	ForecastType string
	MaterialID   string
	UnitID       string
}

// Normalize fills the GENERAL unit placeholder.
func (k ConsolidationKey) Normalize() ConsolidationKey {
	k.UnitID = NormalizeUnit(k.UnitID)
	return k
}

// Normalize fills the GENERAL unit placeholder.
func (k NettingKey) Normalize() NettingKey {
	k.UnitID = NormalizeUnit(k.UnitID)
	return k
}
