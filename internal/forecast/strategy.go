package forecast

import "math/rand/v2"

// Strategy turns an average historical quantity per quarter into a projected
// quantity for one quarter. The pipeline treats it as pluggable so a real
// statistical model can replace the synthetic default without touching the
// generator.
type Strategy interface {
	Project(avgQtyPerQuarter float64) float64
}

// VarianceStrategy applies a uniform random multiplier in
// [1-Spread, 1+Spread] to the quarterly average. It is a placeholder
// heuristic, not a statistical forecast.
type VarianceStrategy struct {
	Spread float64
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultStrategy returns the ±10% synthetic variance used by the planner.
func DefaultStrategy() VarianceStrategy {
	return VarianceStrategy{Spread: 0.1}
}

// Project draws a fresh multiplier per call.
func (s VarianceStrategy) Project(avgQtyPerQuarter float64) float64 {
	random := s.Rand
	if random == nil {
		random = rand.Float64
	}
	factor := 1 + (random()*2-1)*s.Spread
	return avgQtyPerQuarter * factor
}

// FixedStrategy projects the average unchanged. Used by tests and dry runs.
type FixedStrategy struct{}

// Project returns the average as-is.
func (FixedStrategy) Project(avgQtyPerQuarter float64) float64 {
	return avgQtyPerQuarter
}
