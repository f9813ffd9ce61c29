// Package trajectory plans time-parameterized velocity profiles for a
// single axis: an acceleration ramp toward cruise velocity, an optional
// cruise, and a deceleration ramp arriving at the target with zero
// velocity. Planning is a pure function of the axis's current kinematic
// state, so an in-flight goto can be superseded at any tick with position
// and velocity continuity guaranteed.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package trajectory

import "math"

// State is the kinematic state of an axis in the step domain.
type State struct {
	PositionSteps float64
	VelocitySteps float64 // steps/s, signed
}

// Limits bound a planned profile.
type Limits struct {
	MaxVelocity float64 // steps/s
	Accel       float64 // steps/s^2
}

// phase is one constant-acceleration span of a segment.
type phase struct {
	duration float64
	startPos float64
	startVel float64
	accel    float64
}

// Segment is an immutable velocity profile. Segments are replaced, never
// mutated: a retarget plans a new segment from the axis's current state.
type Segment struct {
	StartTime float64
	StartPos  float64
	StartVel  float64
	Target    float64
	CruiseVel float64 // signed peak velocity
	AccelTime float64
	DecelTime float64
	Duration  float64

	phases []phase
}

// Done reports whether the profile has completed at the given time.
func (s *Segment) Done(now float64) bool {
	return now >= s.StartTime+s.Duration
}

// EndTime returns the absolute completion time.
func (s *Segment) EndTime() float64 {
	return s.StartTime + s.Duration
}

// PositionAt evaluates the profile position at an absolute time.
// Before the start it reports the start position; after completion it
// reports the target exactly.
func (s *Segment) PositionAt(now float64) float64 {
	t := now - s.StartTime
	if t <= 0 {
		return s.StartPos
	}
	if t >= s.Duration {
		return s.Target
	}
	for _, ph := range s.phases {
		if t <= ph.duration {
			return ph.startPos + ph.startVel*t + 0.5*ph.accel*t*t
		}
		t -= ph.duration
	}
	return s.Target
}

// VelocityAt evaluates the profile velocity at an absolute time.
func (s *Segment) VelocityAt(now float64) float64 {
	t := now - s.StartTime
	if t <= 0 {
		return s.StartVel
	}
	if t >= s.Duration {
		return 0
	}
	for _, ph := range s.phases {
		if t <= ph.duration {
			return ph.startVel + ph.accel*t
		}
		t -= ph.duration
	}
	return 0
}

// stoppingDistance returns the signed distance covered when braking from
// velocity v to rest at acceleration a.
func stoppingDistance(v, a float64) float64 {
	if a <= 0 {
		return 0
	}
	return v * math.Abs(v) / (2 * a)
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
