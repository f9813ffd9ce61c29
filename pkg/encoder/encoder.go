// Package encoder provides absolute position feedback for both mount axes.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package encoder

import "time"

// Reading is a single snapshot of both axis encoders.
type Reading struct {
	// Raw counts within one revolution, per axis.
	Axis1Counts int64
	Axis2Counts int64

	// Positions in mechanical degrees derived from the counts.
	Axis1Deg float64
	Axis2Deg float64

	// When the sample was taken.
	Time time.Time
}

// Interface is implemented by encoder feedback sources.
//
// Read may block on I/O and must not be called from the control tick;
// use a Sampler to decouple the two.
type Interface interface {
	// Read returns the current position of both axes.
	Read() (Reading, error)

	// Sync declares the current mechanical position so the encoder
	// counts align with the given counts without moving anything.
	Sync(axis1Counts, axis2Counts int64) error

	// Zero resets both encoder counts to zero at the current position.
	Zero() error

	// Close releases the underlying transport.
	Close() error
}
