// Package driver defines the request surface the motion core presents to
// the stepper driver layer. Register programming, SPI transaction timing,
// and decay-mode selection belong to the driver implementation; the core
// only issues microstep-mode, current-phase, and step requests.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package driver

import "nightwatch-mount/pkg/coords"

// MicrostepMode selects the driver's step resolution.
type MicrostepMode int

const (
	// ModeTracking is the fine resolution used while tracking.
	ModeTracking MicrostepMode = iota
	// ModeGoto is the coarser resolution used for fast slews.
	ModeGoto
)

func (m MicrostepMode) String() string {
	if m == ModeGoto {
		return "goto"
	}
	return "tracking"
}

// CurrentPhase selects the motor current profile.
type CurrentPhase int

const (
	PhaseHold CurrentPhase = iota
	PhaseRun
	PhaseGoto
)

func (p CurrentPhase) String() string {
	switch p {
	case PhaseRun:
		return "run"
	case PhaseGoto:
		return "goto"
	default:
		return "hold"
	}
}

// Interface is the driver request surface consumed by the motion core.
// StepPulse must be non-blocking; it is called from the real-time tick.
// Step deltas are always expressed in tracking-resolution microsteps
// regardless of the active MicrostepMode; the driver owns the electrical
// translation.
type Interface interface {
	SetMicrostepMode(axis coords.Axis, mode MicrostepMode) error
	SetCurrent(axis coords.Axis, phase CurrentPhase) error
	StepPulse(axis coords.Axis, delta int64)
	Enable(axis coords.Axis, on bool) error
}
