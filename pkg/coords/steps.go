// Package coords converts between sky coordinates, mechanical axis angles,
// and motor step counts.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package coords

import "math"

// StepScale converts between axis degrees and motor steps for one axis.
// Steps are tracking-resolution microsteps counted from the axis reference
// position. A reversed axis flips the sign of the step domain so that
// positive mechanical degrees always map to increasing steps upstream of
// the driver wiring.
type StepScale struct {
	StepsPerDegree float64
	Reverse        bool
}

// Steps converts an axis angle in degrees to the nearest whole step.
func (s StepScale) Steps(deg float64) int64 {
	return int64(math.Round(s.StepsFloat(deg)))
}

// StepsFloat converts an axis angle in degrees to fractional steps.
func (s StepScale) StepsFloat(deg float64) float64 {
	v := deg * s.StepsPerDegree
	if s.Reverse {
		v = -v
	}
	return v
}

// Degrees converts a step count back to an axis angle in degrees.
func (s StepScale) Degrees(steps int64) float64 {
	return s.DegreesFloat(float64(steps))
}

// DegreesFloat converts fractional steps back to an axis angle in degrees.
func (s StepScale) DegreesFloat(steps float64) float64 {
	if s.Reverse {
		steps = -steps
	}
	return steps / s.StepsPerDegree
}

// StepResolutionDeg returns the angular size of one step.
func (s StepScale) StepResolutionDeg() float64 {
	return 1.0 / s.StepsPerDegree
}
