// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package coords

// Axis identifies one of the mount's two mechanical axes.
type Axis int

const (
	// Axis1 is the polar (RA-equivalent) axis.
	Axis1 Axis = iota
	// Axis2 is the declination-equivalent axis.
	Axis2
)

func (a Axis) String() string {
	switch a {
	case Axis1:
		return "axis1"
	case Axis2:
		return "axis2"
	default:
		return "axis?"
	}
}
