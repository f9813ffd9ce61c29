// Simulated stepper driver.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package driver

import (
	"sync"

	"nightwatch-mount/pkg/coords"
)

// Sim is an in-memory driver used by the simulator harness and tests.
// It integrates step pulses into a per-axis position and can model a
// mechanical stall by delivering only a fraction of commanded steps to
// the simulated mechanics.
type Sim struct {
	mu sync.Mutex

	position [2]int64
	mode     [2]MicrostepMode
	phase    [2]CurrentPhase
	enabled  [2]bool

	// stallFraction is the fraction of commanded steps that actually
	// move the mechanics; 1.0 means healthy.
	stallFraction [2]float64
	stallResidual [2]float64
}

// NewSim creates a healthy simulated driver.
func NewSim() *Sim {
	s := &Sim{}
	s.stallFraction[0] = 1.0
	s.stallFraction[1] = 1.0
	return s
}

// SetMicrostepMode records the requested resolution.
func (s *Sim) SetMicrostepMode(axis coords.Axis, mode MicrostepMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode[axis] = mode
	return nil
}

// SetCurrent records the requested current phase.
func (s *Sim) SetCurrent(axis coords.Axis, phase CurrentPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase[axis] = phase
	return nil
}

// StepPulse integrates a signed step delta into the simulated mechanics.
func (s *Sim) StepPulse(axis coords.Axis, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := float64(delta)*s.stallFraction[axis] + s.stallResidual[axis]
	whole := int64(moved)
	s.stallResidual[axis] = moved - float64(whole)
	s.position[axis] += whole
}

// Enable records the drive-enable state.
func (s *Sim) Enable(axis coords.Axis, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[axis] = on
	return nil
}

// Position returns the simulated mechanical position in steps.
func (s *Sim) Position(axis coords.Axis) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position[axis]
}

// Mode returns the last requested microstep mode.
func (s *Sim) Mode(axis coords.Axis) MicrostepMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode[axis]
}

// Phase returns the last requested current phase.
func (s *Sim) Phase(axis coords.Axis) CurrentPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase[axis]
}

// Enabled returns the drive-enable state.
func (s *Sim) Enabled(axis coords.Axis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[axis]
}

// InjectStall makes the axis lose the given fraction of commanded motion;
// fraction 0.05 means only 5% of steps reach the mechanics.
func (s *Sim) InjectStall(axis coords.Axis, fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallFraction[axis] = fraction
}

// SetPosition forces the simulated mechanics to a position, for test setup.
func (s *Sim) SetPosition(axis coords.Axis, steps int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position[axis] = steps
}
