package pipeline

import "math"

// The model accepts thinking budgets between these native bounds.
const (
	budgetFloor = 128
	budgetCeil  = 32768
)

// ThinkingBudgetForQuality maps a 0..100 quality level onto the model's
// native thinking budget range. Out-of-range levels clamp to the bounds.
func ThinkingBudgetForQuality(level int) int32 {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	scaled := float64(level) / 100 * float64(budgetCeil-budgetFloor)
	return int32(budgetFloor + math.Round(scaled))
}
