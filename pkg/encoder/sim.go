// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package encoder

import (
	"sync"
	"time"

	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/errors"
)

// Sim derives encoder readings from a simulated driver, so the whole
// feedback path can run without hardware.
type Sim struct {
	mu  sync.Mutex
	drv *driver.Sim

	stepsPerDeg  [2]float64
	countsPerRev [2]int64
	offsetDeg    [2]float64
	failing      bool
}

// NewSim creates a simulated encoder reading back drv's positions.
// stepsPerDeg converts the driver's step counts to degrees; countsPerRev
// sets the emulated encoder resolution.
func NewSim(drv *driver.Sim, axis1StepsPerDeg, axis2StepsPerDeg float64, countsPerRev int64) *Sim {
	if countsPerRev == 0 {
		countsPerRev = 16384
	}
	return &Sim{
		drv:          drv,
		stepsPerDeg:  [2]float64{axis1StepsPerDeg, axis2StepsPerDeg},
		countsPerRev: [2]int64{countsPerRev, countsPerRev},
	}
}

func (s *Sim) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return Reading{}, errors.EncoderFaultError("sim", errors.New(errors.ErrEncoderFault, "injected fault"))
	}

	d1 := float64(s.drv.Position(coords.Axis1))/s.stepsPerDeg[0] + s.offsetDeg[0]
	d2 := float64(s.drv.Position(coords.Axis2))/s.stepsPerDeg[1] + s.offsetDeg[1]

	return Reading{
		Axis1Counts: degreesToCounts(d1, s.countsPerRev[0]),
		Axis2Counts: degreesToCounts(d2, s.countsPerRev[1]),
		Axis1Deg:    coords.Wrap180(d1),
		Axis2Deg:    coords.Wrap180(d2),
		Time:        time.Now(),
	}, nil
}

func (s *Sim) Sync(axis1Counts, axis2Counts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want1 := countsToDegrees(axis1Counts, s.countsPerRev[0])
	want2 := countsToDegrees(axis2Counts, s.countsPerRev[1])
	have1 := float64(s.drv.Position(coords.Axis1)) / s.stepsPerDeg[0]
	have2 := float64(s.drv.Position(coords.Axis2)) / s.stepsPerDeg[1]
	s.offsetDeg[0] = want1 - have1
	s.offsetDeg[1] = want2 - have2
	return nil
}

func (s *Sim) Zero() error {
	return s.Sync(0, 0)
}

func (s *Sim) Close() error {
	return nil
}

// InjectFault makes every subsequent Read fail until cleared.
func (s *Sim) InjectFault(on bool) {
	s.mu.Lock()
	s.failing = on
	s.mu.Unlock()
}
