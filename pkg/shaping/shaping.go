// Package shaping maps raw stick positions onto motor demands.
package shaping

import "math"

const (
	// StickDeadband is the dead zone around centre for a driver stick.
	StickDeadband = 0.05
	// DefaultMixer blends the cubic term against the linear one.
	DefaultMixer = 0.75
	// NormalLimit caps the demand unless turbo is held.
	NormalLimit = 0.8
)

// ApplyDeadband zeroes values within +/-deadband and rescales the rest so that
// the edge of the dead zone maps to 0 and maxMagnitude still maps to itself.
func ApplyDeadband(value, deadband, maxMagnitude float64) float64 {
	if math.Abs(value) <= deadband {
		return 0
	}
	if maxMagnitude/deadband > 1.0e12 {
		// Deadband is negligible; avoid dividing by nearly maxMagnitude.
		return value
	}
	if value > 0 {
		return maxMagnitude * (value - deadband) / (maxMagnitude - deadband)
	}
	return maxMagnitude * (value + deadband) / (maxMagnitude - deadband)
}

// Shape applies the stick deadband and then the cubic/linear response curve:
//
//	out = mixer*x^3 + (1-mixer)*x
//
// The cubic term gives fine control near centre, the linear term keeps the
// response at the extremes.
func Shape(raw, mixer float64) float64 {
	x := ApplyDeadband(Clamp(raw), StickDeadband, 1)
	return mixer*math.Pow(x, 3) + (1-mixer)*x
}

// Limit scales a demand down to NormalLimit unless turbo is held.
func Limit(value float64, turbo bool) float64 {
	if turbo {
		return value
	}
	return value * NormalLimit
}

// Clamp bounds value to [-1, 1].
func Clamp(value float64) float64 {
	if value < -1 {
		return -1
	}
	if value > 1 {
		return 1
	}
	return value
}

// CopySignSquare squares value, keeping its sign.
func CopySignSquare(value float64) float64 {
	return math.Copysign(value*value, value)
}
