// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package servo

import (
	"math"
	"testing"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/errors"
)

func testConfig() Config {
	return Config{
		Axis: config.AxisConfig{
			Name:             "axis1",
			StepsPerDegree:   24000,
			MaxRateDegPerSec: 4.0,
			AccelTimeSec:     3.0,
			RapidStopTimeSec: 2.0,
			LimitMinDeg:      -180,
			LimitMaxDeg:      180,
			BacklashDeg:      0.02,
		},
		ModeSwitchMaxDegPerSec: 0.01,
		StallWindowSec:         0.5,
		StallMinSteps:          500,
		StallRatio:             0.1,
		BacklashRateDegPerSec:  25 * coords.SiderealRateDegPerSec,
	}
}

// run ticks the servo at 100Hz for the given duration, feeding encoder
// samples derived from the simulated driver when feed is set.
func run(t *testing.T, s *AxisServo, drv *driver.Sim, start, dur float64, feed bool) (float64, error) {
	t.Helper()
	var lastErr error
	now := start
	for now < start+dur {
		now += 0.01
		if feed {
			s.ObserveEncoderDeg(float64(drv.Position(coords.Axis1)) / 24000.0)
		}
		if err := s.Tick(now); err != nil {
			lastErr = err
		}
	}
	return now, lastErr
}

func TestBaselineTracking(t *testing.T) {
	drv := driver.NewSim()
	s, err := New(coords.Axis1, testConfig(), drv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Tick(0) // arm
	s.SetBaseVelocityDeg(coords.SiderealRateDegPerSec)
	run(t, s, drv, 0, 10.0, true)

	wantSteps := coords.SiderealRateDegPerSec * 24000 * 10
	got := float64(drv.Position(coords.Axis1))
	if math.Abs(got-wantSteps) > 2 {
		t.Errorf("after 10s tracking: %.1f steps, want %.1f", got, wantSteps)
	}
	if s.Faulted() {
		t.Errorf("unexpected fault: %v", s.LastError())
	}
}

func TestSlewReachesTarget(t *testing.T) {
	drv := driver.NewSim()
	s, err := New(coords.Axis1, testConfig(), drv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Tick(0)
	seg, err := s.PlanMove(0, 10.0)
	if err != nil {
		t.Fatalf("PlanMove: %v", err)
	}
	s.SetSegment(seg)
	run(t, s, drv, 0, seg.Duration+0.5, true)

	if !s.SegmentDone(seg.Duration + 0.5) {
		t.Error("segment not done after its duration")
	}
	if got := s.PositionDeg(); math.Abs(got-10.0) > 0.001 {
		t.Errorf("position = %.4f deg, want 10", got)
	}
	// Driver saw every commanded step.
	if got := drv.Position(coords.Axis1); got != 240000 {
		t.Errorf("driver position = %d steps, want 240000", got)
	}
	if s.Velocity() != 0 {
		t.Errorf("velocity = %.2f after arrival, want 0", s.Velocity())
	}
}

func TestPlanMoveRejectsOutOfLimits(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)
	s.Tick(0)

	if _, err := s.PlanMove(0, 185.0); !errors.Is(err, errors.ErrLimitExceeded) {
		t.Errorf("err = %v, want limit exceeded", err)
	}
}

func TestBaselineStopsAtLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Axis.LimitMaxDeg = 1.0
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, cfg, drv)

	s.Tick(0)
	s.SetBaseVelocityDeg(2.0)
	_, lastErr := run(t, s, drv, 0, 2.0, true)

	if !s.Faulted() {
		t.Fatal("expected fault at soft limit")
	}
	if !errors.Is(lastErr, errors.ErrLimitExceeded) {
		t.Errorf("err = %v, want limit exceeded", lastErr)
	}
	if got := s.PositionDeg(); got > 1.0+0.001 {
		t.Errorf("overran limit: %.4f deg", got)
	}
}

func TestStallDetection(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)
	drv.InjectStall(coords.Axis1, 0.05)

	s.Tick(0)
	seg, _ := s.PlanMove(0, 40.0)
	s.SetSegment(seg)
	_, lastErr := run(t, s, drv, 0, 3.0, true)

	if !s.Faulted() {
		t.Fatal("expected stall fault")
	}
	if !errors.Is(lastErr, errors.ErrStallDetected) {
		t.Errorf("err = %v, want stall", lastErr)
	}

	var me *errors.MountError
	if errors.As(lastErr, &me) {
		if me.Axis != "axis1" {
			t.Errorf("fault axis = %q, want axis1", me.Axis)
		}
	} else {
		t.Errorf("fault is not a MountError: %v", lastErr)
	}
}

func TestStallScenarioNumbers(t *testing.T) {
	// 1000 steps commanded, fewer than 100 observed must trip with
	// min=500 ratio=0.1.
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)
	drv.InjectStall(coords.Axis1, 0.08)

	s.Tick(0)
	// 0.1 deg/s is 2400 steps/s, so one 0.5s window commands 1200 steps
	// while the driver delivers 8 percent of them.
	s.SetBaseVelocityDeg(0.1)
	_, lastErr := run(t, s, drv, 0, 1.5, true)

	if !errors.Is(lastErr, errors.ErrStallDetected) {
		t.Fatalf("err = %v, want stall", lastErr)
	}
}

func TestEncoderDegradedRunsOpenLoop(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	s.SetBaseVelocityDeg(0.5)
	_, lastErr := run(t, s, drv, 0, 2.0, false) // no encoder samples

	if lastErr != nil {
		t.Errorf("unexpected error without encoder: %v", lastErr)
	}
	if s.Faulted() {
		t.Error("must not fault without encoder data")
	}
	if !s.EncoderDegraded() {
		t.Error("expected degraded flag while moving blind")
	}
}

func TestModeSwitchGatedByVelocity(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	seg, _ := s.PlanMove(0, 40.0)
	s.SetSegment(seg)
	run(t, s, drv, 0, 4.0, true) // well into the cruise phase

	if err := s.RequestMicrostepMode(driver.ModeGoto); !errors.Is(err, errors.ErrUnsafeModeSwitch) {
		t.Errorf("err = %v, want unsafe mode switch", err)
	}

	// Finish the move, then the switch is allowed.
	run(t, s, drv, 4.0, seg.Duration, true)
	if err := s.RequestMicrostepMode(driver.ModeTracking); err != nil {
		t.Errorf("mode switch at rest failed: %v", err)
	}
	if drv.Mode(coords.Axis1) != driver.ModeTracking {
		t.Errorf("driver mode = %v, want tracking", drv.Mode(coords.Axis1))
	}
}

func TestBacklashTakeupOnReversal(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	s.SetBaseVelocityDeg(0.1)
	now, _ := run(t, s, drv, 0, 1.0, true)
	s.SetBaseVelocityDeg(-0.1)
	run(t, s, drv, now, 2.0, true)

	// 0.02 deg of backlash at 24000 steps/deg is 480 steps of takeup.
	got := s.BacklashTotalSteps()
	if got < 478 || got > 482 {
		t.Errorf("backlash takeup = %d steps, want about 480", got)
	}
}

func TestRapidStop(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	seg, _ := s.PlanMove(0, 40.0)
	s.SetSegment(seg)
	now, _ := run(t, s, drv, 0, 4.0, true) // cruising at 4 deg/s

	vBefore := math.Abs(s.Velocity())
	if vBefore < 90000 {
		t.Fatalf("not at cruise: %.0f steps/s", vBefore)
	}
	s.RapidStop(now)
	run(t, s, drv, now, 2.1, true)

	if s.Velocity() != 0 {
		t.Errorf("velocity = %.2f after rapid stop, want 0", s.Velocity())
	}
	if s.Moving() {
		t.Error("still moving after rapid stop window")
	}
}

func TestSyncPositionOnlyAtRest(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	if err := s.SyncPosition(30.0); err != nil {
		t.Fatalf("sync at rest: %v", err)
	}
	if got := s.PositionDeg(); math.Abs(got-30.0) > 1e-9 {
		t.Errorf("position = %.4f, want 30", got)
	}

	s.SetBaseVelocityDeg(0.5)
	run(t, s, drv, 0, 0.2, true)
	if err := s.SyncPosition(0); !errors.Is(err, errors.ErrMountState) {
		t.Errorf("err = %v, want mount state error", err)
	}
}

func TestMeasuredStepsPrefersEncoder(t *testing.T) {
	drv := driver.NewSim()
	s, _ := New(coords.Axis1, testConfig(), drv)

	s.Tick(0)
	if err := s.SyncPosition(10.0); err != nil {
		t.Fatalf("sync: %v", err)
	}
	// Without a sample the commanded position stands in.
	if got := s.MeasuredSteps(); math.Abs(got-10.0*24000) > 0.5 {
		t.Errorf("open-loop measured = %.1f steps, want %.1f", got, 10.0*24000)
	}

	// A fresh observation overrides the commanded position.
	s.ObserveEncoderDeg(9.9)
	if got := s.MeasuredSteps(); math.Abs(got-9.9*24000) > 0.5 {
		t.Errorf("measured = %.1f steps, want %.1f", got, 9.9*24000)
	}
}
