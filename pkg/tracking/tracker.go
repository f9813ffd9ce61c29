// Sidereal tracking rate generation with refraction and PEC corrections.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package tracking

import (
	"math"
	"time"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
)

// Rates are the drive rates for both axes while tracking, in mechanical
// degrees per second.
type Rates struct {
	Axis1DegPerSec float64
	Axis2DegPerSec float64
}

// Tracker computes tracking rates. The baseline is the sidereal rate on
// axis1; refraction and periodic error corrections are layered on top,
// each bounded to half the sidereal rate. A correction outside that
// bound is dropped and counted instead of applied.
//
// Rates must be called from the control tick; everything here is pure
// computation.
type Tracker struct {
	cfg    config.TrackingConfig
	site   coords.Site
	spd    float64 // axis1 steps per degree
	maxCor float64 // correction bound, deg/sec

	target     coords.Equatorial
	haveTarget bool

	pec *PECTable

	refrAt   time.Time
	refrHA   float64 // cached axis1 rate correction, deg/sec
	refrDec  float64 // cached declination rate, deg/sec
	rejected int64
}

// New creates a tracker for the given site. axis1StepsPerDeg converts
// PEC table entries from steps/sec.
func New(cfg config.TrackingConfig, site coords.Site, axis1StepsPerDeg float64) *Tracker {
	return &Tracker{
		cfg:    cfg,
		site:   site,
		spd:    axis1StepsPerDeg,
		maxCor: 0.5 * coords.SiderealRateDegPerSec,
	}
}

// SetTarget sets the sky target the refraction model follows.
func (t *Tracker) SetTarget(eq coords.Equatorial) {
	t.target = eq
	t.haveTarget = true
	t.refrAt = time.Time{} // force recompute
}

// ClearTarget drops the target; tracking falls back to plain sidereal.
func (t *Tracker) ClearTarget() {
	t.haveTarget = false
	t.refrHA = 0
	t.refrDec = 0
}

// SetPEC installs a periodic error correction table.
func (t *Tracker) SetPEC(table *PECTable) {
	t.pec = table
}

// RejectedCorrections returns how many corrections were dropped for
// exceeding the bound.
func (t *Tracker) RejectedCorrections() int64 { return t.rejected }

// Rates returns the drive rates for both axes at now. axis1Steps is the
// current axis1 motor position for the PEC phase; side selects the sign
// of the declination correction.
func (t *Tracker) Rates(now time.Time, side coords.PierSide, axis1Steps int64) Rates {
	r := Rates{Axis1DegPerSec: coords.SiderealRateDegPerSec}

	if t.cfg.RefractionEnabled && t.haveTarget {
		t.refreshRefraction(now)
		r.Axis1DegPerSec += t.refrHA
		if side == coords.PierWest {
			r.Axis2DegPerSec = -t.refrDec
		} else {
			r.Axis2DegPerSec = t.refrDec
		}
	}

	if t.cfg.PECEnabled && t.pec != nil {
		cor := t.pec.Correction(axis1Steps) / t.spd
		if math.Abs(cor) > t.maxCor {
			t.rejected++
		} else {
			r.Axis1DegPerSec += cor
		}
	}

	return r
}

// refreshRefraction recomputes the cached refraction rate corrections
// when the configured interval has passed.
func (t *Tracker) refreshRefraction(now time.Time) {
	interval := t.cfg.RefractionIntervalS
	if interval <= 0 {
		interval = 60
	}
	if !t.refrAt.IsZero() && now.Sub(t.refrAt).Seconds() < interval {
		return
	}
	t.refrAt = now

	// Finite difference of the apparent position over the interval.
	dt := interval
	ha0, dec0 := t.apparent(now)
	ha1, dec1 := t.apparent(now.Add(time.Duration(dt * float64(time.Second))))

	haRate := coords.Wrap180(ha1-ha0) / dt
	decRate := coords.Wrap180(dec1-dec0) / dt

	corHA := haRate - coords.SiderealRateDegPerSec
	if math.Abs(corHA) > t.maxCor {
		t.rejected++
		corHA = 0
	}
	if math.Abs(decRate) > t.maxCor {
		t.rejected++
		decRate = 0
	}
	t.refrHA = corHA
	t.refrDec = decRate
}

// apparent returns the refraction-corrected hour angle and declination
// of the target at the given time.
func (t *Tracker) apparent(at time.Time) (haDeg, decDeg float64) {
	lst := coords.LSTHours(at, t.site)
	hor := coords.ToHorizontal(t.target, t.site, lst)
	hor.AltDeg = coords.ApparentAltDeg(hor.AltDeg)
	return coords.FromHorizontal(hor, t.site.LatitudeDeg)
}
