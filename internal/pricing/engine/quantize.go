package engine

import "math"

// quantize6 rounds v to 6 decimal places, half-away-from-zero. This is
// the one place the core leans on the standard library instead of a
// decimal type; see DESIGN.md for why shopspring/decimal was rejected.
func quantize6(v float64) float64 {
	const scale = 1e6
	if v >= 0 {
		return math.Floor(v*scale+0.5) / scale
	}
	return math.Ceil(v*scale-0.5) / scale
}
