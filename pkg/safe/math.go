package safe

import (
	"math"
)

// Finite returns v, or 0 when v is NaN or ±Inf.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Div divides a by b and returns 0 instead of NaN/Inf on a zero denominator.
func Div(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return Finite(a / b)
}

// Percent returns part/whole*100, or 0 when whole is zero.
func Percent(part, whole float64) float64 {
	return Div(part, whole) * 100
}

// NonNegative clamps v to zero from below. Non-finite values become 0.
func NonNegative(v float64) float64 {
	v = Finite(v)
	if v < 0 {
		return 0
	}
	return v
}
