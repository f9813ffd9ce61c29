// Trapezoidal profile planning.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package trajectory

import "math"

const planEps = 1e-9

// Plan computes a profile from the current kinematic state to the target
// position, arriving at rest. It is deterministic and has no side effects.
// A start velocity pointing away from the target, exceeding the velocity
// limit, or too fast to stop before the target produces the appropriate
// braking pre-phase; the remainder is a trapezoid, degenerating to a
// triangular ramp when the distance is too short to reach cruise velocity.
func Plan(now float64, st State, target float64, lim Limits) *Segment {
	return planWithVmax(now, st, target, lim.Accel, lim.MaxVelocity)
}

func planWithVmax(now float64, st State, target, accel, vmax float64) *Segment {
	seg := &Segment{
		StartTime: now,
		StartPos:  st.PositionSteps,
		StartVel:  st.VelocitySteps,
		Target:    target,
	}
	if accel <= 0 || vmax <= 0 {
		// Degenerate limits: stay put. The caller validates config, so
		// this only guards arithmetic.
		seg.Target = st.PositionSteps
		return seg
	}

	p := st.PositionSteps
	v := st.VelocitySteps
	dist := target - p

	if math.Abs(dist) < planEps && math.Abs(v) < planEps {
		return seg
	}

	// Braking pre-phases. Brake to rest when moving away from the target
	// or when the stopping distance overshoots it; brake to the velocity
	// limit when starting above it.
	if v != 0 {
		stop := stoppingDistance(v, accel)
		movingAway := sign(v) != sign(dist)
		overshoot := !movingAway && math.Abs(stop) > math.Abs(dist)+planEps
		if movingAway || overshoot {
			tb := math.Abs(v) / accel
			seg.phases = append(seg.phases, phase{
				duration: tb, startPos: p, startVel: v, accel: -sign(v) * accel,
			})
			p += stop
			v = 0
			dist = target - p
		} else if math.Abs(v) > vmax {
			tb := (math.Abs(v) - vmax) / accel
			d := (v + sign(v)*vmax) / 2 * tb
			seg.phases = append(seg.phases, phase{
				duration: tb, startPos: p, startVel: v, accel: -sign(v) * accel,
			})
			p += d
			v = sign(v) * vmax
			dist = target - p
		}
	}

	if math.Abs(dist) >= planEps {
		dir := sign(dist)
		v0 := math.Abs(v)
		d := math.Abs(dist)

		// Distance to reach vmax from v0, plus distance to stop from vmax.
		da := (vmax*vmax - v0*v0) / (2 * accel)
		dd := vmax * vmax / (2 * accel)

		var vc float64
		if da+dd <= d {
			vc = vmax
		} else {
			// Triangular ramp: peak velocity solved so accel and decel
			// distances sum to d exactly.
			vc = math.Sqrt(accel*d + v0*v0/2)
		}

		ta := (vc - v0) / accel
		if ta > 0 {
			seg.phases = append(seg.phases, phase{
				duration: ta, startPos: p, startVel: dir * v0, accel: dir * accel,
			})
			p += dir * (v0 + vc) / 2 * ta
		}

		dc := d - (vc*vc-v0*v0)/(2*accel) - vc*vc/(2*accel)
		if dc > planEps {
			tc := dc / vc
			seg.phases = append(seg.phases, phase{
				duration: tc, startPos: p, startVel: dir * vc,
			})
			p += dir * dc
		}

		td := vc / accel
		seg.phases = append(seg.phases, phase{
			duration: td, startPos: p, startVel: dir * vc, accel: -dir * accel,
		})

		seg.CruiseVel = dir * vc
		seg.AccelTime = ta
		seg.DecelTime = td
	}

	for _, ph := range seg.phases {
		seg.Duration += ph.duration
	}
	return seg
}

// PlanStop computes a rapid-stop profile: brake from the current velocity
// to rest at the given (usually higher) deceleration, ignoring any target.
// The segment's target is wherever the axis comes to rest.
func PlanStop(now float64, st State, decel float64) *Segment {
	seg := &Segment{
		StartTime: now,
		StartPos:  st.PositionSteps,
		StartVel:  st.VelocitySteps,
	}
	v := st.VelocitySteps
	if decel <= 0 || v == 0 {
		seg.Target = st.PositionSteps
		return seg
	}
	tb := math.Abs(v) / decel
	seg.phases = []phase{{
		duration: tb, startPos: st.PositionSteps, startVel: v, accel: -sign(v) * decel,
	}}
	seg.Target = st.PositionSteps + stoppingDistance(v, decel)
	seg.Duration = tb
	seg.DecelTime = tb
	return seg
}

// PlanDuration plans toward target taking at least the requested duration,
// used to synchronize a faster axis with a slower one. The cruise velocity
// is reduced by bisection until the profile duration matches within
// tolerance; if even the full-rate profile is slower than requested, that
// profile is returned unchanged.
func PlanDuration(now float64, st State, target float64, lim Limits, duration float64) *Segment {
	full := Plan(now, st, target, lim)
	if full.Duration >= duration-1e-6 {
		return full
	}

	lo, hi := 0.0, lim.MaxVelocity
	best := full
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if mid <= 0 {
			break
		}
		seg := planWithVmax(now, st, target, lim.Accel, mid)
		if math.Abs(seg.Duration-duration) < 1e-6 {
			return seg
		}
		if seg.Duration > duration {
			// Too slow: allow more speed
			lo = mid
			best = seg
		} else {
			hi = mid
			best = seg
		}
	}
	return best
}

// Coordinate plans a two-axis move so both profiles share a common end
// time: the slower axis is planned at full rate and the faster axis is
// stretched to match it.
func Coordinate(now float64, st1 State, target1 float64, lim1 Limits,
	st2 State, target2 float64, lim2 Limits) (*Segment, *Segment) {

	s1 := Plan(now, st1, target1, lim1)
	s2 := Plan(now, st2, target2, lim2)

	switch {
	case s1.Duration > s2.Duration:
		s2 = PlanDuration(now, st2, target2, lim2, s1.Duration)
	case s2.Duration > s1.Duration:
		s1 = PlanDuration(now, st1, target1, lim1, s2.Duration)
	}
	return s1, s2
}
