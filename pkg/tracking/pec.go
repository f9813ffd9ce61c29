// Periodic error correction lookup.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package tracking

import (
	"nightwatch-mount/pkg/errors"
)

// PECTable holds rate corrections indexed by worm gear phase. Each entry
// is a correction in axis1 steps/sec, recorded over one worm revolution.
type PECTable struct {
	entries         []float64
	wormPeriodSteps int64
}

// NewPECTable builds a table. wormPeriodSteps is the number of axis1
// steps in one worm revolution.
func NewPECTable(entries []float64, wormPeriodSteps int64) (*PECTable, error) {
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrConfigValidation, "pec table is empty")
	}
	if wormPeriodSteps <= 0 {
		return nil, errors.Newf(errors.ErrConfigValidation,
			"worm period must be positive, got %d", wormPeriodSteps)
	}
	return &PECTable{entries: entries, wormPeriodSteps: wormPeriodSteps}, nil
}

// Len returns the number of table entries.
func (p *PECTable) Len() int { return len(p.entries) }

// Correction returns the rate correction in steps/sec for the worm phase
// implied by the given axis1 motor position.
func (p *PECTable) Correction(axis1Steps int64) float64 {
	phase := axis1Steps % p.wormPeriodSteps
	if phase < 0 {
		phase += p.wormPeriodSteps
	}
	idx := int(phase * int64(len(p.entries)) / p.wormPeriodSteps)
	if idx >= len(p.entries) {
		idx = len(p.entries) - 1
	}
	return p.entries[idx]
}
