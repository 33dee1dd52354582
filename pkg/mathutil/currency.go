// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/equity-snapshot/pkg/constants"
)

// RoundWhole rounds a value to the nearest integer with halves going toward
// positive infinity, so -0.5 rounds to 0 and 0.5 rounds to 1. Non-finite
// values (from a zero or missing denominator) collapse to 0 so that callers
// never depend on an undefined float to int conversion.
func RoundWhole(val float64) int {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	rounded := math.Floor(val)
	if val-rounded >= 0.5 {
		rounded++
	}
	return int(rounded)
}

// IsFinite reports whether val is neither NaN nor an infinity.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// Ratio returns numerator / denominator. A zero denominator yields an
// infinity or NaN exactly as float division does; callers decide how to
// treat it.
func Ratio(numerator, denominator float64) float64 {
	return numerator / denominator
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	return Ratio(value, total) * constants.PercentageMultiplier
}
