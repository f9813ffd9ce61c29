// Atmospheric refraction.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coords

import "math"

// RefractionDeg returns the Bennett refraction for a true altitude,
// in degrees. Valid down to the horizon; negative altitudes are treated
// as zero refraction since nothing below the horizon is tracked.
func RefractionDeg(altDeg float64) float64 {
	if altDeg < 0 {
		return 0
	}
	if altDeg > 89.9 {
		return 0
	}
	// Bennett (1982), arcminutes
	r := 1.02 / math.Tan(deg2rad(altDeg+10.3/(altDeg+5.11)))
	if r < 0 {
		return 0
	}
	return r / 60.0
}

// ApparentAltDeg returns the refracted (apparent) altitude for a true
// altitude.
func ApparentAltDeg(altDeg float64) float64 {
	return altDeg + RefractionDeg(altDeg)
}
