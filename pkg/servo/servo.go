// Per-axis closed-loop step generation.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package servo

import (
	"math"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/errors"
	"nightwatch-mount/pkg/trajectory"
)

// Config bundles everything one axis servo needs beyond its axis block.
type Config struct {
	Axis config.AxisConfig

	// Microstep-mode switches are refused above this speed.
	ModeSwitchMaxDegPerSec float64

	// Stall detection: over each window, if at least StallMinSteps were
	// commanded but the encoder moved less than StallRatio of them, the
	// axis faults.
	StallWindowSec float64
	StallMinSteps  int64
	StallRatio     float64

	// Backlash takeup rate on direction reversal.
	BacklashRateDegPerSec float64
}

// AxisServo turns trajectory segments and baseline rates into step pulses
// for one axis, and watches the encoder for stalls.
//
// All methods must be called from the control tick goroutine.
type AxisServo struct {
	axis  coords.Axis
	cfg   Config
	scale coords.StepScale
	drv   driver.Interface

	limits     trajectory.Limits // step units
	rapidDecel float64

	seg     *trajectory.Segment
	baseVel float64 // steps/sec, integrated when no segment is active
	cmdPos  float64 // commanded position, steps
	emitted int64   // steps actually pulsed to the driver
	lastVel float64
	last    float64 // previous tick time
	started bool

	limitMin float64
	limitMax float64

	// backlash takeup
	lastDir         int
	backlashLeft    float64 // steps
	backlashRate    float64 // steps/sec
	backlashTotal   int64
	backlashPending float64

	// stall window
	winStart    float64
	winEmitted  int64
	winEncSteps float64
	winEncValid bool
	encSteps    float64
	encFresh    bool
	encDegraded bool

	faulted bool
	lastErr error
}

// New creates a servo for axis driving drv. The driver is enabled.
func New(axis coords.Axis, cfg Config, drv driver.Interface) (*AxisServo, error) {
	spd := cfg.Axis.StepsPerDegree
	s := &AxisServo{
		axis:  axis,
		cfg:   cfg,
		scale: coords.StepScale{StepsPerDegree: spd, Reverse: cfg.Axis.Reverse},
		drv:   drv,
		limits: trajectory.Limits{
			MaxVelocity: cfg.Axis.MaxRateDegPerSec * spd,
			Accel:       cfg.Axis.AccelDegPerSec2() * spd,
		},
		rapidDecel:   cfg.Axis.RapidStopDegPerSec2() * spd,
		limitMin:     cfg.Axis.LimitMinDeg * spd,
		limitMax:     cfg.Axis.LimitMaxDeg * spd,
		backlashRate: cfg.BacklashRateDegPerSec * spd,
	}
	if err := drv.Enable(axis, true); err != nil {
		return nil, err
	}
	return s, nil
}

// PositionSteps returns the commanded position in steps.
func (s *AxisServo) PositionSteps() float64 { return s.cmdPos }

// PositionDeg returns the commanded position in mechanical degrees.
func (s *AxisServo) PositionDeg() float64 {
	return s.scale.DegreesFloat(s.cmdPos)
}

// Velocity returns the commanded velocity in steps/sec as of the last tick.
func (s *AxisServo) Velocity() float64 { return s.lastVel }

// VelocityDeg returns the commanded velocity in degrees/sec.
func (s *AxisServo) VelocityDeg() float64 {
	v := s.lastVel / s.cfg.Axis.StepsPerDegree
	if s.cfg.Axis.Reverse {
		v = -v
	}
	return v
}

// Moving reports whether a segment is active or a baseline rate is set.
func (s *AxisServo) Moving() bool {
	return s.seg != nil || s.baseVel != 0
}

// Limits returns the trajectory limits in step units.
func (s *AxisServo) Limits() trajectory.Limits { return s.limits }

// State returns the current trajectory state for planning.
func (s *AxisServo) State() trajectory.State {
	return trajectory.State{PositionSteps: s.cmdPos, VelocitySteps: s.lastVel}
}

// StepsForDeg converts a mechanical angle to this axis's step frame.
func (s *AxisServo) StepsForDeg(deg float64) float64 {
	return s.scale.StepsFloat(deg)
}

// CheckTarget validates a target in degrees against the soft limits.
func (s *AxisServo) CheckTarget(targetDeg float64) error {
	if targetDeg < s.cfg.Axis.LimitMinDeg || targetDeg > s.cfg.Axis.LimitMaxDeg {
		return errors.LimitExceededError(s.axis.String(), targetDeg,
			s.cfg.Axis.LimitMinDeg, s.cfg.Axis.LimitMaxDeg)
	}
	return nil
}

// PlanMove plans a profiled move to targetDeg from the current state.
// The segment is not installed; call SetSegment once coordination with
// the other axis is done.
func (s *AxisServo) PlanMove(now, targetDeg float64) (*trajectory.Segment, error) {
	if err := s.CheckTarget(targetDeg); err != nil {
		return nil, err
	}
	seg := trajectory.Plan(now, s.State(), s.scale.StepsFloat(targetDeg), s.limits)
	return seg, nil
}

// SetSegment installs a segment, replacing any active one.
func (s *AxisServo) SetSegment(seg *trajectory.Segment) {
	s.seg = seg
	s.baseVel = 0
}

// SetBaseVelocityDeg sets the open-ended drive rate in degrees/sec,
// used for sidereal tracking. Cleared by any segment.
func (s *AxisServo) SetBaseVelocityDeg(degPerSec float64) {
	s.baseVel = s.scale.StepsFloat(degPerSec)
}

// BaseVelocity returns the baseline rate in steps/sec.
func (s *AxisServo) BaseVelocity() float64 { return s.baseVel }

// RapidStop replaces any motion with an emergency deceleration profile.
func (s *AxisServo) RapidStop(now float64) {
	st := s.State()
	if st.VelocitySteps == 0 {
		s.seg = nil
		s.baseVel = 0
		return
	}
	s.seg = trajectory.PlanStop(now, st, s.rapidDecel)
	s.baseVel = 0
}

// RequestMicrostepMode switches the driver microstep mode. Refused while
// the axis moves faster than the configured threshold.
func (s *AxisServo) RequestMicrostepMode(mode driver.MicrostepMode) error {
	maxVel := s.cfg.ModeSwitchMaxDegPerSec * s.cfg.Axis.StepsPerDegree
	if math.Abs(s.lastVel) > maxVel {
		return errors.UnsafeModeSwitchError(s.axis.String(), s.lastVel)
	}
	return s.drv.SetMicrostepMode(s.axis, mode)
}

// SetCurrent forwards a current-phase change to the driver.
func (s *AxisServo) SetCurrent(phase driver.CurrentPhase) error {
	return s.drv.SetCurrent(s.axis, phase)
}

// SyncPosition declares the current mechanical position in degrees,
// e.g. after homing against the absolute encoders. Only valid at rest.
func (s *AxisServo) SyncPosition(deg float64) error {
	if s.Moving() || s.lastVel != 0 {
		return errors.Newf(errors.ErrMountState,
			"%s: cannot sync position while moving", s.axis)
	}
	s.cmdPos = s.scale.StepsFloat(deg)
	s.emitted = int64(math.Round(s.cmdPos))
	s.winEncValid = false
	s.encFresh = false
	return nil
}

// ObserveEncoderDeg feeds the latest encoder sample, in mechanical
// degrees, into stall detection.
func (s *AxisServo) ObserveEncoderDeg(deg float64) {
	s.encSteps = s.scale.StepsFloat(deg)
	s.encFresh = true
	s.encDegraded = false
}

// MeasuredSteps returns the best estimate of the true axis position:
// the latest encoder observation while the feed is healthy, otherwise
// the commanded position.
func (s *AxisServo) MeasuredSteps() float64 {
	if s.encFresh && !s.encDegraded {
		return s.encSteps
	}
	return s.cmdPos
}

// EncoderDegraded reports whether stall detection is running blind.
func (s *AxisServo) EncoderDegraded() bool { return s.encDegraded }

// Faulted reports whether the axis has latched a fault.
func (s *AxisServo) Faulted() bool { return s.faulted }

// LastError returns the fault cause, if any.
func (s *AxisServo) LastError() error { return s.lastErr }

// ClearFault unlatches a fault after the condition has been resolved.
func (s *AxisServo) ClearFault() {
	s.faulted = false
	s.lastErr = nil
	s.winEncValid = false
}

// BacklashTotalSteps returns the cumulative takeup steps emitted.
func (s *AxisServo) BacklashTotalSteps() int64 { return s.backlashTotal }

// SegmentDone reports whether the installed segment has completed.
func (s *AxisServo) SegmentDone(now float64) bool {
	return s.seg == nil || s.seg.Done(now)
}

// Tick advances the commanded position to now and emits step pulses.
// Returns a non-nil error on the tick that latches a fault.
func (s *AxisServo) Tick(now float64) error {
	if !s.started {
		s.started = true
		s.last = now
		s.winStart = now
		return nil
	}
	dt := now - s.last
	s.last = now
	if dt <= 0 {
		return nil
	}

	if s.faulted && s.seg == nil {
		s.lastVel = 0
		return nil
	}

	var tickErr error

	// Baseline drive gets a stopping-distance lookahead so it comes to
	// rest at the limit instead of through it.
	if !s.faulted && s.seg == nil && s.baseVel != 0 {
		stopDist := s.baseVel * math.Abs(s.baseVel) / (2 * s.rapidDecel)
		projected := s.cmdPos + s.baseVel*dt + stopDist
		if projected > s.limitMax || projected < s.limitMin {
			tickErr = errors.LimitExceededError(s.axis.String(),
				s.PositionDeg(), s.cfg.Axis.LimitMinDeg, s.cfg.Axis.LimitMaxDeg)
			s.RapidStop(now)
			s.fault(tickErr)
		}
	}

	// Advance the commanded position.
	switch {
	case s.seg != nil:
		s.cmdPos = s.seg.PositionAt(now)
		s.lastVel = s.seg.VelocityAt(now)
		if s.seg.Done(now) {
			s.cmdPos = s.seg.Target
			s.lastVel = 0
			s.seg = nil
		}
	case s.baseVel != 0:
		s.cmdPos += s.baseVel * dt
		s.lastVel = s.baseVel
	default:
		s.lastVel = 0
	}

	// A profiled move can only run out of bounds during the braking
	// pre-phase after a retarget; brake hard if it does.
	if !s.faulted && s.seg != nil && (s.cmdPos > s.limitMax || s.cmdPos < s.limitMin) {
		tickErr = errors.LimitExceededError(s.axis.String(),
			s.PositionDeg(), s.cfg.Axis.LimitMinDeg, s.cfg.Axis.LimitMaxDeg)
		s.RapidStop(now)
		s.fault(tickErr)
	}

	// Emit whole steps; the fraction stays in cmdPos-emitted.
	delta := int64(math.Round(s.cmdPos)) - s.emitted

	// Direction reversal eats the backlash before the axis moves.
	if delta != 0 && s.cfg.Axis.BacklashDeg > 0 {
		dir := 1
		if delta < 0 {
			dir = -1
		}
		if s.lastDir != 0 && dir != s.lastDir {
			s.backlashLeft = s.cfg.Axis.BacklashDeg * s.cfg.Axis.StepsPerDegree
		}
		s.lastDir = dir
	}
	if s.backlashLeft > 0 && s.backlashRate > 0 {
		s.backlashPending += math.Min(s.backlashRate*dt, s.backlashLeft)
		takeup := int64(s.backlashPending)
		if takeup > 0 {
			s.backlashPending -= float64(takeup)
			s.backlashLeft -= float64(takeup)
			if s.backlashLeft < 1 {
				s.backlashLeft = 0
			}
			if s.lastDir < 0 {
				takeup = -takeup
			}
			s.drv.StepPulse(s.axis, takeup)
			s.backlashTotal += abs64(takeup)
		}
	}

	if delta != 0 {
		s.drv.StepPulse(s.axis, delta)
		s.emitted += delta
	}

	if err := s.checkStall(now); err != nil && tickErr == nil {
		tickErr = err
	}
	return tickErr
}

func (s *AxisServo) checkStall(now float64) error {
	if s.cfg.StallWindowSec <= 0 {
		return nil
	}
	if now-s.winStart < s.cfg.StallWindowSec {
		return nil
	}

	commanded := s.emitted - s.winEmitted
	hadEnc := s.winEncValid && s.encFresh
	var actual float64
	if hadEnc {
		actual = s.encSteps - s.winEncSteps
	}

	// Open the next window before deciding, so a fault does not stall
	// the bookkeeping itself.
	s.winStart = now
	s.winEmitted = s.emitted
	s.winEncSteps = s.encSteps
	s.winEncValid = s.encFresh
	if !s.encFresh {
		// No sample arrived this window: run open loop and say so.
		if abs64(commanded) >= s.cfg.StallMinSteps {
			s.encDegraded = true
		}
		return nil
	}
	s.encFresh = false

	if !hadEnc || abs64(commanded) < s.cfg.StallMinSteps {
		return nil
	}
	if math.Abs(actual) < s.cfg.StallRatio*float64(abs64(commanded)) {
		s.RapidStop(now)
		return s.fault(errors.StallError(s.axis.String(), commanded, int64(actual)))
	}
	return nil
}

// fault latches the error. An already-installed stop segment keeps
// playing so the axis still decelerates mechanically.
func (s *AxisServo) fault(err error) error {
	s.faulted = true
	s.lastErr = err
	s.baseVel = 0
	return err
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
