package trajectory

import (
	"math"
	"testing"
)

// Limits mirroring the axis1 hardware: 24000 steps/deg, 4 deg/s slew rate
// reached in 3 s.
var axis1Limits = Limits{
	MaxVelocity: 4.0 * 24000,       // 96000 steps/s
	Accel:       4.0 * 24000 / 3.0, // 32000 steps/s^2
}

func checkProfile(t *testing.T, seg *Segment, lim Limits) {
	t.Helper()

	// Sample the profile and verify velocity limit, acceleration limit,
	// and kinematic consistency.
	dt := seg.Duration / 1000
	if dt == 0 {
		return
	}
	prevV := seg.VelocityAt(seg.StartTime)
	for i := 0; i <= 1000; i++ {
		now := seg.StartTime + float64(i)*dt
		v := seg.VelocityAt(now)
		if math.Abs(v) > lim.MaxVelocity*1.0001 && math.Abs(v) > math.Abs(seg.StartVel)*1.0001 {
			t.Fatalf("velocity %v exceeds limit %v at t=%v", v, lim.MaxVelocity, now)
		}
		if a := math.Abs(v-prevV) / dt; a > lim.Accel*1.01 {
			t.Fatalf("acceleration %v exceeds limit %v at t=%v", a, lim.Accel, now)
		}
		prevV = v
	}
}

func TestZeroDistanceIdempotent(t *testing.T) {
	st := State{PositionSteps: 5000}
	seg := Plan(0, st, 5000, axis1Limits)
	if seg.Duration != 0 {
		t.Errorf("zero-distance segment duration = %v", seg.Duration)
	}
	if seg.PositionAt(10) != 5000 || seg.VelocityAt(10) != 0 {
		t.Error("zero-distance segment should hold position")
	}
}

func TestShortMoveTriangular(t *testing.T) {
	// 1 degree = 24000 steps: too short to reach 4 deg/s, so the profile
	// degenerates to a triangular ramp.
	seg := Plan(0, State{}, 24000, axis1Limits)

	if seg.AccelTime > 3.0 || seg.DecelTime > 3.0 {
		t.Errorf("ramp times %v/%v exceed 3 s", seg.AccelTime, seg.DecelTime)
	}
	if math.Abs(seg.CruiseVel) >= axis1Limits.MaxVelocity {
		t.Errorf("triangular peak %v should be below cruise limit", seg.CruiseVel)
	}

	// Arrives exactly at the target with zero velocity
	end := seg.EndTime()
	if got := seg.PositionAt(end); got != 24000 {
		t.Errorf("final position = %v, want 24000", got)
	}
	if got := seg.VelocityAt(end); got != 0 {
		t.Errorf("final velocity = %v, want 0", got)
	}

	// Peak = sqrt(a*d) for a standing start
	wantPeak := math.Sqrt(axis1Limits.Accel * 24000)
	if math.Abs(seg.CruiseVel-wantPeak) > 1 {
		t.Errorf("peak = %v, want %v", seg.CruiseVel, wantPeak)
	}
	checkProfile(t, seg, axis1Limits)
}

func TestLongMoveTrapezoid(t *testing.T) {
	// 40 degrees: plenty of room to cruise at full rate
	target := 40.0 * 24000
	seg := Plan(0, State{}, target, axis1Limits)

	if math.Abs(seg.CruiseVel-axis1Limits.MaxVelocity) > 1e-6 {
		t.Errorf("cruise = %v, want %v", seg.CruiseVel, axis1Limits.MaxVelocity)
	}
	if math.Abs(seg.AccelTime-3.0) > 1e-6 || math.Abs(seg.DecelTime-3.0) > 1e-6 {
		t.Errorf("ramp times = %v/%v, want 3 s each", seg.AccelTime, seg.DecelTime)
	}
	if seg.PositionAt(seg.EndTime()) != target {
		t.Errorf("final position = %v", seg.PositionAt(seg.EndTime()))
	}
	checkProfile(t, seg, axis1Limits)
}

func TestRetargetContinuity(t *testing.T) {
	// Start a long slew, retarget mid-flight, verify the new segment
	// starts from the in-flight kinematic state.
	seg := Plan(0, State{}, 40*24000, axis1Limits)

	now := 2.0 // mid-acceleration
	st := State{PositionSteps: seg.PositionAt(now), VelocitySteps: seg.VelocityAt(now)}
	re := Plan(now, st, 10*24000, axis1Limits)

	if re.PositionAt(now) != st.PositionSteps {
		t.Errorf("retarget position discontinuity: %v != %v", re.PositionAt(now), st.PositionSteps)
	}
	if re.VelocityAt(now) != st.VelocitySteps {
		t.Errorf("retarget velocity discontinuity: %v != %v", re.VelocityAt(now), st.VelocitySteps)
	}
	if re.PositionAt(re.EndTime()) != 10*24000 {
		t.Errorf("retarget final position = %v", re.PositionAt(re.EndTime()))
	}
	checkProfile(t, re, axis1Limits)
}

func TestReversalBrakesFirst(t *testing.T) {
	// Moving at full rate away from the new target: the profile must
	// brake to rest before heading back.
	st := State{PositionSteps: 0, VelocitySteps: 96000}
	seg := Plan(0, st, -24000, axis1Limits)

	// During the brake phase velocity stays positive, then goes negative
	if v := seg.VelocityAt(1.0); v <= 0 {
		t.Errorf("velocity during brake = %v, want positive", v)
	}
	if v := seg.VelocityAt(seg.Duration - 0.5); v >= 0 {
		t.Errorf("velocity during return = %v, want negative", v)
	}
	if got := seg.PositionAt(seg.EndTime()); got != -24000 {
		t.Errorf("final position = %v", got)
	}
	checkProfile(t, seg, axis1Limits)
}

func TestOvershootHandled(t *testing.T) {
	// Moving fast toward a target that is closer than the stopping
	// distance: brake past it, then come back.
	st := State{VelocitySteps: 96000}
	stopDist := 96000.0 * 96000.0 / (2 * axis1Limits.Accel) // 144000 steps
	target := stopDist / 2
	seg := Plan(0, st, target, axis1Limits)

	if got := seg.PositionAt(seg.EndTime()); math.Abs(got-target) > 1e-6 {
		t.Errorf("final position = %v, want %v", got, target)
	}
	if got := seg.VelocityAt(seg.EndTime()); got != 0 {
		t.Errorf("final velocity = %v", got)
	}
	checkProfile(t, seg, axis1Limits)
}

func TestStoppingDistanceBound(t *testing.T) {
	// Property: every planned profile's deceleration never implies more
	// than the configured acceleration capability.
	starts := []State{
		{0, 0}, {1000, 50000}, {-5000, -96000}, {200000, 20000}, {0, 120000},
	}
	targets := []float64{0, 24000, -24000, 500000, -500000}

	for _, st := range starts {
		for _, target := range targets {
			seg := Plan(0, st, target, axis1Limits)
			if got := seg.PositionAt(seg.EndTime()); math.Abs(got-target) > 1e-6 {
				t.Errorf("start %+v target %v: final %v", st, target, got)
			}
			checkProfile(t, seg, axis1Limits)
		}
	}
}

func TestPlanStop(t *testing.T) {
	// Rapid stop at 2 s to full rate: decel = 48000 steps/s^2
	rapid := 96000.0 / 2.0
	st := State{PositionSteps: 1000, VelocitySteps: 96000}
	seg := PlanStop(0, st, rapid)

	if math.Abs(seg.Duration-2.0) > 1e-9 {
		t.Errorf("stop duration = %v, want 2", seg.Duration)
	}
	wantEnd := 1000 + 96000.0*96000.0/(2*rapid)
	if math.Abs(seg.Target-wantEnd) > 1e-6 {
		t.Errorf("stop target = %v, want %v", seg.Target, wantEnd)
	}
	if seg.VelocityAt(seg.EndTime()) != 0 {
		t.Error("stop should end at rest")
	}

	// Stopping from rest is a no-op
	idle := PlanStop(0, State{PositionSteps: 7}, rapid)
	if idle.Duration != 0 || idle.Target != 7 {
		t.Errorf("idle stop = %+v", idle)
	}
}

func TestPlanDurationStretch(t *testing.T) {
	target := 10.0 * 24000
	full := Plan(0, State{}, target, axis1Limits)

	want := full.Duration * 2
	seg := PlanDuration(0, State{}, target, axis1Limits, want)

	if math.Abs(seg.Duration-want) > 0.01 {
		t.Errorf("stretched duration = %v, want %v", seg.Duration, want)
	}
	if got := seg.PositionAt(seg.EndTime()); math.Abs(got-target) > 1e-6 {
		t.Errorf("stretched final position = %v", got)
	}
	checkProfile(t, seg, axis1Limits)
}

func TestCoordinateCommonEndTime(t *testing.T) {
	// Axis1 has much farther to travel than axis2; axis2 is stretched.
	lim2 := Limits{MaxVelocity: 4.0 * 19200, Accel: 4.0 * 19200 / 3.0}

	s1, s2 := Coordinate(0,
		State{}, 40*24000, axis1Limits,
		State{}, 2*19200, lim2)

	if math.Abs(s1.EndTime()-s2.EndTime()) > 0.01 {
		t.Errorf("end times differ: %v vs %v", s1.EndTime(), s2.EndTime())
	}
	if got := s2.PositionAt(s2.EndTime()); math.Abs(got-2*19200) > 1e-6 {
		t.Errorf("axis2 final = %v", got)
	}
	checkProfile(t, s1, axis1Limits)
	checkProfile(t, s2, lim2)
}

func TestCoordinateZeroDistanceAxis(t *testing.T) {
	lim2 := Limits{MaxVelocity: 4.0 * 19200, Accel: 4.0 * 19200 / 3.0}
	s1, s2 := Coordinate(0,
		State{}, 10*24000, axis1Limits,
		State{PositionSteps: 500}, 500, lim2)

	if s2.Duration != 0 {
		// A zero-distance axis cannot be stretched; it just holds.
		t.Errorf("zero-distance axis duration = %v", s2.Duration)
	}
	if s1.Duration == 0 {
		t.Error("moving axis should still move")
	}
}
