package oscillation

import "math"

// Significant reports whether the move from prev to next is signal rather than jitter
func Significant(prev, next, noiseFilter float64) bool {
	return math.Abs(next-prev) >= noiseFilter
}

// StateLabel derives the coarse state of the current value relative to the setpoint.
// settled selects the label pair: true once at least min_duration has passed since
// the last registered peak or trough (or none has been registered yet).
func StateLabel(value, setpoint, noiseFilter float64, settled bool) string {
	switch {
	case math.Abs(value-setpoint) <= noiseFilter:
		if settled {
			return "stable"
		}
		return "near_setpoint"
	case value > setpoint:
		if settled {
			return "high"
		}
		return "above_setpoint"
	default:
		if settled {
			return "low"
		}
		return "below_setpoint"
	}
}

// ProblemFlags reports the high and low pH flags: strictly outside the noise band
func ProblemFlags(value, setpoint, noiseFilter float64) (high, low bool) {
	return value > setpoint+noiseFilter, value < setpoint-noiseFilter
}
