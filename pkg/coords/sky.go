// Sky coordinate types and time conversions.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coords

import (
	"math"
	"time"
)

const (
	// SiderealDaySec is the length of one sidereal day.
	SiderealDaySec = 86164.0905

	// SiderealRateDegPerSec is the sky's apparent angular rate.
	SiderealRateDegPerSec = 360.0 / SiderealDaySec
)

// Equatorial is a sky position in the equatorial frame.
type Equatorial struct {
	RAHours float64 // right ascension, hours [0, 24)
	DecDeg  float64 // declination, degrees [-90, +90]
}

// Horizontal is a sky position in the local horizontal frame.
type Horizontal struct {
	AltDeg float64
	AzDeg  float64 // measured from north through east
}

// Site is the observing location, immutable after initialization.
type Site struct {
	LatitudeDeg    float64
	LongitudeDeg   float64
	ElevationM     float64
	UTCOffsetHours float64
}

// JulianDate returns the Julian date for a UTC time.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := t.Year()
	m := int(t.Month())
	d := t.Day()

	jd := float64(367*y-(7*(y+(m+9)/12))/4+(275*m)/9+d) + 1721013.5
	jd += (float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600 +
		float64(t.Nanosecond())/3600e9) / 24
	return jd
}

// GMSTDeg returns Greenwich mean sidereal time in degrees.
func GMSTDeg(jd float64) float64 {
	d := jd - 2451545.0
	tc := d / 36525.0
	gmst := 280.46061837 + 360.98564736629*d + 0.000387933*tc*tc - tc*tc*tc/38710000.0
	return wrap360(gmst)
}

// LSTHours returns local sidereal time in hours for the site.
func LSTHours(t time.Time, site Site) float64 {
	lst := (GMSTDeg(JulianDate(t)) + site.LongitudeDeg) / 15.0
	return wrap24(lst)
}

// HourAngleDeg returns the hour angle of a right ascension in degrees,
// wrapped to [-180, +180). Positive hour angle is west of the meridian.
func HourAngleDeg(lstHours, raHours float64) float64 {
	return Wrap180((lstHours - raHours) * 15.0)
}

// ToHorizontal converts an equatorial position to the horizontal frame.
func ToHorizontal(eq Equatorial, site Site, lstHours float64) Horizontal {
	ha := HourAngleDeg(lstHours, eq.RAHours)

	latR := deg2rad(site.LatitudeDeg)
	decR := deg2rad(eq.DecDeg)
	haR := deg2rad(ha)

	sinAlt := math.Sin(decR)*math.Sin(latR) + math.Cos(decR)*math.Cos(latR)*math.Cos(haR)
	alt := math.Asin(clamp(sinAlt, -1, 1))

	cosAz := (math.Sin(decR) - math.Sin(alt)*math.Sin(latR)) /
		(math.Cos(alt) * math.Cos(latR))
	az := math.Acos(clamp(cosAz, -1, 1))
	if math.Sin(haR) > 0 {
		az = 2*math.Pi - az
	}

	return Horizontal{AltDeg: rad2deg(alt), AzDeg: rad2deg(az)}
}

// FromHorizontal converts a horizontal position back to hour angle and
// declination, the inverse of ToHorizontal.
func FromHorizontal(hor Horizontal, latDeg float64) (haDeg, decDeg float64) {
	latR := deg2rad(latDeg)
	altR := deg2rad(hor.AltDeg)
	azR := deg2rad(hor.AzDeg)

	sinDec := math.Sin(altR)*math.Sin(latR) + math.Cos(altR)*math.Cos(latR)*math.Cos(azR)
	decR := math.Asin(clamp(sinDec, -1, 1))

	sinHA := -math.Sin(azR) * math.Cos(altR)
	cosHA := (math.Sin(altR) - math.Sin(decR)*math.Sin(latR)) / math.Cos(latR)
	return Wrap180(rad2deg(math.Atan2(sinHA, cosHA))), rad2deg(decR)
}

// Wrap180 wraps an angle in degrees to [-180, +180).
func Wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func wrap360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func wrap24(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
