package generators

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// TerminationCount returns ceil(active × rate).
func TerminationCount(active int, rate float64) int {
	return int(decimal.NewFromInt(int64(active)).Mul(decimal.NewFromFloat(rate)).Ceil().IntPart())
}

// HiresNeeded returns ceil((terminations + workforce × growth) / (1 − newHireTermRate)).
// Rounding up guarantees that expected post-attrition growth meets the target.
func HiresNeeded(terminations, workforce int, growth, newHireTermRate float64) (int, error) {
	if newHireTermRate >= 1 {
		return 0, engine.NewConfigurationError(
			fmt.Sprintf("new_hire_termination_rate must be below 1, got %g", newHireTermRate)).
			WithDetail("field", "new_hire_termination_rate")
	}
	if newHireTermRate < 0 {
		return 0, engine.NewConfigurationError(
			fmt.Sprintf("new_hire_termination_rate must not be negative, got %g", newHireTermRate)).
			WithDetail("field", "new_hire_termination_rate")
	}

	numerator := decimal.NewFromInt(int64(terminations)).
		Add(decimal.NewFromInt(int64(workforce)).Mul(decimal.NewFromFloat(growth)))
	denominator := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(newHireTermRate))

	hires := numerator.Div(denominator).Ceil().IntPart()
	if hires < 0 {
		hires = 0
	}
	return int(hires), nil
}

// NewHireTerminationCount returns round(hires × rate), halves rounding up.
func NewHireTerminationCount(hires int, rate float64) int {
	return int(decimal.NewFromInt(int64(hires)).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart())
}
