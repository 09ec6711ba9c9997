package stats

import (
	"fmt"
	"math"

	"github.com/nusaplan/nusaplan/internal/shared"
)

// SubmissionSummary reports DPK submission completion for one fiscal year.
type SubmissionSummary struct {
	FiscalYear     int     `json:"fiscal_year"`
	TotalUnits     int     `json:"total_units"`
	SubmittedUnits int     `json:"submitted_units"`
	CompletionPct  float64 `json:"completion_pct"`
}

// AccuracyRow ranks one requesting unit by forecast accuracy.
type AccuracyRow struct {
	UnitID      string  `json:"unit_id"`
	UnitName    string  `json:"unit_name"`
	AccuracyPct float64 `json:"accuracy_pct"`
}

// YearTotal aggregates demand for one fiscal year.
type YearTotal struct {
	FiscalYear int
	TotalQty   float64
}

// YoYComparison reports the demand delta between a year and the one before.
type YoYComparison struct {
	FiscalYear  int     `json:"fiscal_year"`
	PrevYear    int     `json:"prev_year"`
	CurrentQty  float64 `json:"current_qty"`
	PreviousQty float64 `json:"previous_qty"`
	DeltaPct    float64 `json:"delta_pct"`
}

var (
	// ErrInsufficientData indicates the aggregation window lacks required rows.
	ErrInsufficientData = fmt.Errorf("stats: %w", shared.ErrInsufficientData)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("stats: %w", shared.ErrValidation)
)

// round1 rounds half-up to one decimal place. Half-up, not half away from
// zero: -91.25 rounds to -91.2.
func round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// pct divides with a zero-denominator guard: a zero denominator yields 0,
// never NaN.
func pct(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return round1(numerator / denominator * 100)
}
