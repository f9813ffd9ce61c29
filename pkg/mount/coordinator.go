// Two-axis mount coordination: pier side policy, meridian flips, homing
// and parking.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package mount

import (
	"math"
	"sync/atomic"
	"time"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/encoder"
	"nightwatch-mount/pkg/errors"
	"nightwatch-mount/pkg/log"
	"nightwatch-mount/pkg/persist"
	"nightwatch-mount/pkg/servo"
	"nightwatch-mount/pkg/tracking"
	"nightwatch-mount/pkg/trajectory"
)

// encoderStaleness is how old a sample may be before the servos run
// open loop.
const encoderStaleness = time.Second

// EncoderSource delivers the most recent encoder sample without
// blocking. *encoder.Sampler satisfies it.
type EncoderSource interface {
	Latest() (encoder.Reading, bool)
}

// Options wires a Coordinator together.
type Options struct {
	Config  *config.MountConfig
	Driver  driver.Interface
	Encoder EncoderSource // optional
	Tracker *tracking.Tracker

	// Restore is the persisted park state from the previous run.
	Restore *persist.ParkState

	// Now overrides the wall clock for tests.
	Now func() time.Time
}

type reqKind int

const (
	reqTarget reqKind = iota
	reqTrackStart
	reqTrackStop
	reqStop
	reqPark
	reqUnpark
	reqHome
)

type request struct {
	kind   reqKind
	target coords.Equatorial
}

// Coordinator owns the mount state machine. All motion state is mutated
// only inside Tick; commands hand off through one atomic slot per logical
// operation and are applied at the next tick boundary, so a goto racing a
// park cannot displace it. Within one operation, last writer wins.
type Coordinator struct {
	cfg     *config.MountConfig
	a1, a2  *servo.AxisServo
	tracker *tracking.Tracker
	enc     EncoderSource
	ring    *log.Ring
	nowFn   func() time.Time

	state   State
	side    coords.PierSide
	target  *coords.Equatorial
	fault   error
	cmdErr  error

	afterSlew State
	slewMech  coords.Mechanical

	homingSettling bool

	// Per-operation pending slots: stop, park/unpark, home, tracking
	// on/off, goto target.
	pendingStop    atomic.Pointer[request]
	pendingPark    atomic.Pointer[request]
	pendingHome    atomic.Pointer[request]
	pendingTrack   atomic.Pointer[request]
	pendingTarget  atomic.Pointer[request]
	status         atomic.Pointer[Status]
	pendingPersist atomic.Pointer[persist.ParkState]
}

// New builds a coordinator and its two axis servos.
func New(opts Options) (*Coordinator, error) {
	cfg := opts.Config

	a1, err := servo.New(coords.Axis1, servoConfig(cfg, cfg.Axis1), opts.Driver)
	if err != nil {
		return nil, err
	}
	a2, err := servo.New(coords.Axis2, servoConfig(cfg, cfg.Axis2), opts.Driver)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:     cfg,
		a1:      a1,
		a2:      a2,
		tracker: opts.Tracker,
		enc:     opts.Encoder,
		ring:    log.NewRing(256),
		nowFn:   opts.Now,
		state:   StateIdle,
		side:    coords.PierEast,
	}
	if c.nowFn == nil {
		c.nowFn = time.Now
	}

	if st := opts.Restore; st != nil && cfg.Policy.ParkStatusPreserved {
		if err := c.restore(st); err != nil {
			return nil, err
		}
	}

	c.publish(c.nowFn())
	return c, nil
}

func servoConfig(cfg *config.MountConfig, axis config.AxisConfig) servo.Config {
	return servo.Config{
		Axis:                   axis,
		ModeSwitchMaxDegPerSec: cfg.Policy.ModeSwitchMaxDegSec,
		StallWindowSec:         cfg.Policy.StallWindowSec,
		StallMinSteps:          cfg.Policy.StallMinSteps,
		StallRatio:             cfg.Policy.StallRatio,
		BacklashRateDegPerSec:  cfg.Tracking.BacklashRateSidereal * coords.SiderealRateDegPerSec,
	}
}

// restore places the mount where the previous run left it.
func (c *Coordinator) restore(st *persist.ParkState) error {
	switch st.PierSide {
	case "west":
		c.side = coords.PierWest
	case "east":
		c.side = coords.PierEast
	}
	deg1 := float64(st.Axis1Steps) / c.cfg.Axis1.StepsPerDegree
	deg2 := float64(st.Axis2Steps) / c.cfg.Axis2.StepsPerDegree
	if c.cfg.Axis1.Reverse {
		deg1 = -deg1
	}
	if c.cfg.Axis2.Reverse {
		deg2 = -deg2
	}
	if err := c.a1.SyncPosition(deg1); err != nil {
		return err
	}
	if err := c.a2.SyncPosition(deg2); err != nil {
		return err
	}
	if st.Parked {
		c.state = StateParked
		c.a1.SetCurrent(driver.PhaseHold)
		c.a2.SetCurrent(driver.PhaseHold)
	}
	return nil
}

// Ring exposes the deferred log records accumulated during ticks.
func (c *Coordinator) Ring() *log.Ring { return c.ring }

// Status returns the latest published snapshot.
func (c *Coordinator) Status() Status {
	return *c.status.Load()
}

// PendingPersist retrieves and clears a park state awaiting a disk
// write. Called by the scheduler outside the tick.
func (c *Coordinator) PendingPersist() *persist.ParkState {
	return c.pendingPersist.Swap(nil)
}

// --- command intake (any goroutine) ---

func (c *Coordinator) submit(r *request) {
	switch r.kind {
	case reqStop:
		c.pendingStop.Store(r)
	case reqPark, reqUnpark:
		c.pendingPark.Store(r)
	case reqHome:
		c.pendingHome.Store(r)
	case reqTrackStart, reqTrackStop:
		c.pendingTrack.Store(r)
	case reqTarget:
		c.pendingTarget.Store(r)
	}
}

// SetTarget validates a sky target and queues a goto. Rejections are
// synchronous; the mount state does not change on error.
func (c *Coordinator) SetTarget(eq coords.Equatorial) error {
	st := c.Status()
	switch st.State {
	case StateParked, StateFault, StateHoming, StateParking:
		return errors.MountStateError(st.State.String(), "set target")
	}
	if eq.DecDeg < -90 || eq.DecDeg > 90 {
		return errors.OutOfLimitsError("declination out of range")
	}

	lst := coords.LSTHours(c.nowFn(), c.site())
	ha := coords.HourAngleDeg(lst, eq.RAHours)
	if _, _, err := c.choosePier(ha, eq.DecDeg, st.Axis1Deg, st.Axis2Deg, nil); err != nil {
		return err
	}

	c.submit(&request{kind: reqTarget, target: eq})
	return nil
}

// StartTracking begins sidereal tracking from idle.
func (c *Coordinator) StartTracking() error {
	st := c.Status()
	switch st.State {
	case StateIdle, StateTracking:
		c.submit(&request{kind: reqTrackStart})
		return nil
	default:
		return errors.MountStateError(st.State.String(), "start tracking")
	}
}

// StopTracking drops back to idle.
func (c *Coordinator) StopTracking() error {
	st := c.Status()
	if st.State != StateTracking {
		return errors.MountStateError(st.State.String(), "stop tracking")
	}
	c.submit(&request{kind: reqTrackStop})
	return nil
}

// Stop cancels any motion with a rapid deceleration and goes idle.
func (c *Coordinator) Stop() error {
	c.submit(&request{kind: reqStop})
	return nil
}

// Park drives the mount to its park position.
func (c *Coordinator) Park() error {
	st := c.Status()
	switch st.State {
	case StateParking, StateParked:
		return errors.MountStateError(st.State.String(), "park")
	}
	c.submit(&request{kind: reqPark})
	return nil
}

// Unpark releases a parked mount.
func (c *Coordinator) Unpark() error {
	st := c.Status()
	if st.State != StateParked {
		return errors.MountStateError(st.State.String(), "unpark")
	}
	c.submit(&request{kind: reqUnpark})
	return nil
}

// Home re-references both axes against the absolute encoders and moves
// to the mechanical origin. Also the only way to clear a fault.
func (c *Coordinator) Home() error {
	st := c.Status()
	switch st.State {
	case StateParked, StateHoming:
		return errors.MountStateError(st.State.String(), "home")
	}
	c.submit(&request{kind: reqHome})
	return nil
}

// --- tick (scheduler goroutine only) ---

// Tick advances the whole mount by one control period. now is monotonic
// seconds; wall is the UTC clock for sky math.
func (c *Coordinator) Tick(now float64, wall time.Time) {
	c.drainPending(now, wall)

	if c.enc != nil {
		if r, ok := c.enc.Latest(); ok && wall.Sub(r.Time) < encoderStaleness {
			c.a1.ObserveEncoderDeg(r.Axis1Deg)
			c.a2.ObserveEncoderDeg(r.Axis2Deg)
		}
	}

	if c.state == StateTracking && c.tracker != nil {
		// Worm phase follows the measured position so the periodic
		// correction stays aligned with the physical worm.
		r := c.tracker.Rates(wall, c.side, int64(math.Round(c.a1.MeasuredSteps())))
		c.a1.SetBaseVelocityDeg(r.Axis1DegPerSec)
		c.a2.SetBaseVelocityDeg(r.Axis2DegPerSec)
	}

	err1 := c.a1.Tick(now)
	err2 := c.a2.Tick(now)
	if c.state != StateFault {
		if err1 != nil {
			c.enterFault(now, err1)
		} else if err2 != nil {
			c.enterFault(now, err2)
		}
	}

	switch c.state {
	case StateSlewing, StateParking:
		c.checkArrival(now, wall)
	case StateHoming:
		c.advanceHoming(now, wall)
	case StateTracking:
		c.checkMeridian(now, wall)
	}

	c.publish(wall)
}

// drainPending applies every queued operation, safety-first: stop, then
// park, home, tracking changes, and last any goto. A lower-priority
// command that is no longer valid after an earlier one is rejected and
// reported, not silently dropped.
func (c *Coordinator) drainPending(now float64, wall time.Time) {
	slots := [...]*atomic.Pointer[request]{
		&c.pendingStop, &c.pendingPark, &c.pendingHome,
		&c.pendingTrack, &c.pendingTarget,
	}
	cleared := false
	for _, slot := range slots {
		req := slot.Swap(nil)
		if req == nil {
			continue
		}
		if !cleared {
			c.cmdErr = nil
			cleared = true
		}
		c.apply(req, now, wall)
	}
}

func (c *Coordinator) apply(req *request, now float64, wall time.Time) {
	var err error

	switch req.kind {
	case reqTarget:
		switch c.state {
		case StateParked, StateFault, StateHoming, StateParking:
			err = errors.MountStateError(c.state.String(), "set target")
		default:
			err = c.beginSkyGoto(now, wall, req.target, nil)
		}

	case reqTrackStart:
		if c.state != StateIdle && c.state != StateTracking {
			err = errors.MountStateError(c.state.String(), "start tracking")
			break
		}
		c.startTracking(wall)

	case reqTrackStop:
		if c.state == StateTracking {
			c.stopTracking()
		}

	case reqStop:
		c.a1.RapidStop(now)
		c.a2.RapidStop(now)
		if c.state == StateSlewing || c.state == StateTracking || c.state == StateParking {
			c.state = StateIdle
		}
		c.setMode(driver.ModeTracking)
		c.setCurrent(driver.PhaseRun)

	case reqPark:
		if c.state == StateParking || c.state == StateParked {
			break
		}
		park := coords.Mechanical{
			Axis1Deg: c.cfg.Policy.ParkAxis1Deg,
			Axis2Deg: c.cfg.Policy.ParkAxis2Deg,
		}
		err = c.beginMechMove(now, park, StateParking, StateParked)

	case reqUnpark:
		if c.state != StateParked {
			err = errors.MountStateError(c.state.String(), "unpark")
			break
		}
		c.state = StateIdle
		c.setCurrent(driver.PhaseRun)
		c.queuePersist(false)
		if c.cfg.Tracking.Autostart {
			c.startTracking(wall)
		}

	case reqHome:
		c.fault = nil
		c.a1.ClearFault()
		c.a2.ClearFault()
		c.a1.SetBaseVelocityDeg(0)
		c.a2.SetBaseVelocityDeg(0)
		if c.a1.Moving() {
			c.a1.RapidStop(now)
		}
		if c.a2.Moving() {
			c.a2.RapidStop(now)
		}
		c.state = StateHoming
		c.homingSettling = true
	}

	if err != nil {
		c.cmdErr = err
		c.ring.Append(log.WARN, "command rejected", log.Fields{"error": err.Error()})
	}
}

func (c *Coordinator) startTracking(wall time.Time) {
	if c.target == nil {
		// No explicit target: track whatever the mount points at.
		eq := c.currentSky(wall)
		c.target = &eq
	}
	if c.tracker != nil {
		c.tracker.SetTarget(*c.target)
	}
	c.state = StateTracking
	c.setCurrent(driver.PhaseRun)
	c.setMode(driver.ModeTracking)
}

func (c *Coordinator) stopTracking() {
	c.a1.SetBaseVelocityDeg(0)
	c.a2.SetBaseVelocityDeg(0)
	if c.tracker != nil {
		c.tracker.ClearTarget()
	}
	c.state = StateIdle
}

// beginSkyGoto resolves a sky target to a pier side and mechanical
// position and starts a coordinated two-axis move. forceSide pins the
// pier side for meridian flips.
func (c *Coordinator) beginSkyGoto(now float64, wall time.Time, eq coords.Equatorial, forceSide *coords.PierSide) error {
	lst := coords.LSTHours(wall, c.site())
	ha := coords.HourAngleDeg(lst, eq.RAHours)

	side, mech, err := c.choosePier(ha, eq.DecDeg, c.a1.PositionDeg(), c.a2.PositionDeg(), forceSide)
	if err != nil {
		return err
	}

	// A flip must not strand the mount somewhere it cannot park from.
	if c.cfg.Policy.ParkStrict && side != c.side {
		if err := c.a1.CheckTarget(c.cfg.Policy.ParkAxis1Deg); err != nil {
			return err
		}
		if err := c.a2.CheckTarget(c.cfg.Policy.ParkAxis2Deg); err != nil {
			return err
		}
	}

	if err := c.startMove(now, mech); err != nil {
		return err
	}
	c.side = side
	c.target = &eq
	c.state = StateSlewing
	c.afterSlew = StateTracking
	return nil
}

// beginMechMove starts a coordinated move to a mechanical position.
func (c *Coordinator) beginMechMove(now float64, m coords.Mechanical, during, after State) error {
	if err := c.startMove(now, m); err != nil {
		return err
	}
	c.a1.SetBaseVelocityDeg(0)
	c.a2.SetBaseVelocityDeg(0)
	c.state = during
	c.afterSlew = after
	return nil
}

// startMove validates and installs a coordinated segment pair arriving
// at a common end time.
func (c *Coordinator) startMove(now float64, m coords.Mechanical) error {
	if err := c.a1.CheckTarget(m.Axis1Deg); err != nil {
		return err
	}
	if err := c.a2.CheckTarget(m.Axis2Deg); err != nil {
		return err
	}

	s1, s2 := trajectory.Coordinate(now,
		c.a1.State(), c.a1.StepsForDeg(m.Axis1Deg), c.a1.Limits(),
		c.a2.State(), c.a2.StepsForDeg(m.Axis2Deg), c.a2.Limits())
	c.a1.SetSegment(s1)
	c.a2.SetSegment(s2)
	c.slewMech = m

	c.setMode(driver.ModeGoto)
	c.setCurrent(driver.PhaseGoto)
	return nil
}

type pierCandidate struct {
	side coords.PierSide
	mech coords.Mechanical
	dist float64
}

// choosePier picks a pier side for the given hour angle and declination
// per the configured policy.
func (c *Coordinator) choosePier(ha, dec, cur1, cur2 float64, force *coords.PierSide) (coords.PierSide, coords.Mechanical, error) {
	var cands []pierCandidate
	for _, side := range []coords.PierSide{coords.PierEast, coords.PierWest} {
		if force != nil && side != *force {
			continue
		}
		w := coords.WindowFor(side, c.cfg.Policy.PastMeridianLimitE, c.cfg.Policy.PastMeridianLimitW)
		if !w.Contains(ha) {
			continue
		}
		m := coords.MechanicalFor(side, ha, dec)
		if m.Axis1Deg < c.cfg.Axis1.LimitMinDeg || m.Axis1Deg > c.cfg.Axis1.LimitMaxDeg {
			continue
		}
		if m.Axis2Deg < c.cfg.Axis2.LimitMinDeg || m.Axis2Deg > c.cfg.Axis2.LimitMaxDeg {
			continue
		}
		cands = append(cands, pierCandidate{
			side: side,
			mech: m,
			dist: math.Abs(m.Axis1Deg-cur1) + math.Abs(m.Axis2Deg-cur2),
		})
	}
	if len(cands) == 0 {
		return coords.PierUnknown, coords.Mechanical{}, errors.NoPierSideError(ha)
	}

	best := cands[0]
	switch c.cfg.Policy.PierSidePreferred {
	case "east":
		for _, cd := range cands {
			if cd.side == coords.PierEast {
				best = cd
			}
		}
	case "west":
		for _, cd := range cands {
			if cd.side == coords.PierWest {
				best = cd
			}
		}
	default: // "best": least total motion
		for _, cd := range cands[1:] {
			if cd.dist < best.dist {
				best = cd
			}
		}
	}
	return best.side, best.mech, nil
}

// checkArrival completes a slew or park move once both axes have played
// out their segments and landed within tolerance.
func (c *Coordinator) checkArrival(now float64, wall time.Time) {
	if !c.a1.SegmentDone(now) || !c.a2.SegmentDone(now) {
		return
	}
	tol := c.cfg.Policy.SlewToleranceDeg
	e1 := math.Abs(c.a1.PositionDeg() - c.slewMech.Axis1Deg)
	e2 := math.Abs(c.a2.PositionDeg() - c.slewMech.Axis2Deg)
	if e1 > tol || e2 > tol {
		c.enterFault(now, errors.Newf(errors.ErrMountState,
			"slew ended %.4f/%.4f deg off target", e1, e2))
		return
	}

	switch c.afterSlew {
	case StateTracking:
		c.startTracking(wall)
	case StateParked:
		c.state = StateParked
		c.setCurrent(driver.PhaseHold)
		c.setMode(driver.ModeTracking)
		c.queuePersist(true)
	default:
		c.state = StateIdle
		c.setCurrent(driver.PhaseRun)
		c.setMode(driver.ModeTracking)
	}
}

// advanceHoming runs the two-phase homing sequence: settle to rest,
// re-reference from the absolute encoders, then move to the origin.
func (c *Coordinator) advanceHoming(now float64, wall time.Time) {
	if c.homingSettling {
		if c.a1.Moving() || c.a2.Moving() || c.a1.Velocity() != 0 || c.a2.Velocity() != 0 {
			return
		}

		r, ok := encoder.Reading{}, false
		if c.enc != nil {
			r, ok = c.enc.Latest()
		}
		if !ok || wall.Sub(r.Time) >= encoderStaleness {
			c.cmdErr = errors.EncoderFaultError("bridge",
				errors.New(errors.ErrEncoderFault, "no fresh sample for homing"))
			c.state = StateIdle
			c.homingSettling = false
			c.ring.Append(log.ERROR, "homing aborted", log.Fields{"error": c.cmdErr.Error()})
			return
		}

		if err := c.a1.SyncPosition(r.Axis1Deg); err != nil {
			c.cmdErr = err
			c.state = StateIdle
			c.homingSettling = false
			return
		}
		if err := c.a2.SyncPosition(r.Axis2Deg); err != nil {
			c.cmdErr = err
			c.state = StateIdle
			c.homingSettling = false
			return
		}

		c.homingSettling = false
		if err := c.beginMechMove(now, coords.Mechanical{}, StateHoming, StateIdle); err != nil {
			c.cmdErr = err
			c.state = StateIdle
			return
		}
		return
	}

	if !c.a1.SegmentDone(now) || !c.a2.SegmentDone(now) {
		return
	}

	tol := c.cfg.Policy.HomeToleranceDeg
	if math.Abs(c.a1.PositionDeg()) > tol || math.Abs(c.a2.PositionDeg()) > tol {
		c.enterFault(now, errors.Newf(errors.ErrMountState,
			"home position off by %.4f/%.4f deg",
			c.a1.PositionDeg(), c.a2.PositionDeg()))
		return
	}

	// Mechanical origin is the direct-mapping frame.
	c.side = coords.PierEast
	c.target = nil
	c.state = StateIdle
	c.setCurrent(driver.PhaseRun)
	c.setMode(driver.ModeTracking)
}

// checkMeridian flips or stops a mount tracking past its limit.
func (c *Coordinator) checkMeridian(now float64, wall time.Time) {
	ha, _ := coords.SkyFor(c.side, coords.Mechanical{
		Axis1Deg: c.a1.PositionDeg(),
		Axis2Deg: c.a2.PositionDeg(),
	})
	w := coords.WindowFor(c.side, c.cfg.Policy.PastMeridianLimitE, c.cfg.Policy.PastMeridianLimitW)
	if w.Contains(ha) {
		return
	}

	eq := c.currentSky(wall)
	if c.target != nil {
		eq = *c.target
	}
	other := c.side.Opposite()
	if err := c.beginSkyGoto(now, wall, eq, &other); err != nil {
		c.stopTracking()
		c.cmdErr = err
		c.ring.Append(log.WARN, "tracking stopped at meridian limit",
			log.Fields{"hour_angle": ha, "error": err.Error()})
		return
	}
	c.ring.Append(log.INFO, "meridian flip",
		log.Fields{"hour_angle": ha, "to_side": other.String()})
}

func (c *Coordinator) enterFault(now float64, err error) {
	c.fault = err
	c.state = StateFault
	c.a1.RapidStop(now)
	c.a2.RapidStop(now)
	c.setCurrent(driver.PhaseHold)
	c.ring.Append(log.ERROR, "mount fault", log.Fields{"error": err.Error()})
}

func (c *Coordinator) setCurrent(phase driver.CurrentPhase) {
	c.a1.SetCurrent(phase)
	c.a2.SetCurrent(phase)
}

// setMode switches both axes' microstep resolution; a refusal at speed
// is recorded rather than escalated, the move just runs at the old
// resolution.
func (c *Coordinator) setMode(mode driver.MicrostepMode) {
	if err := c.a1.RequestMicrostepMode(mode); err != nil {
		c.ring.Append(log.WARN, "microstep switch deferred",
			log.Fields{"axis": "axis1", "error": err.Error()})
	}
	if err := c.a2.RequestMicrostepMode(mode); err != nil {
		c.ring.Append(log.WARN, "microstep switch deferred",
			log.Fields{"axis": "axis2", "error": err.Error()})
	}
}

func (c *Coordinator) queuePersist(parked bool) {
	st := &persist.ParkState{
		Parked:     parked,
		PierSide:   c.side.String(),
		Axis1Steps: int64(math.Round(c.a1.PositionSteps())),
		Axis2Steps: int64(math.Round(c.a2.PositionSteps())),
	}
	c.pendingPersist.Store(st)
}

// currentSky converts the current mechanical position to equatorial
// coordinates.
func (c *Coordinator) currentSky(wall time.Time) coords.Equatorial {
	ha, dec := coords.SkyFor(c.side, coords.Mechanical{
		Axis1Deg: c.a1.PositionDeg(),
		Axis2Deg: c.a2.PositionDeg(),
	})
	lst := coords.LSTHours(wall, c.site())
	ra := math.Mod(lst-ha/15.0+48.0, 24.0)
	return coords.Equatorial{RAHours: ra, DecDeg: dec}
}

func (c *Coordinator) site() coords.Site {
	return coords.Site{
		LatitudeDeg:    c.cfg.Site.LatitudeDeg,
		LongitudeDeg:   c.cfg.Site.LongitudeDeg,
		ElevationM:     c.cfg.Site.ElevationM,
		UTCOffsetHours: c.cfg.Site.UTCOffsetHours,
	}
}

func (c *Coordinator) publish(wall time.Time) {
	ha, dec := coords.SkyFor(c.side, coords.Mechanical{
		Axis1Deg: c.a1.PositionDeg(),
		Axis2Deg: c.a2.PositionDeg(),
	})
	lst := coords.LSTHours(wall, c.site())

	st := &Status{
		State:           c.state,
		PierSide:        c.side,
		Axis1Deg:        c.a1.PositionDeg(),
		Axis2Deg:        c.a2.PositionDeg(),
		Axis1DegPerSec:  c.a1.VelocityDeg(),
		Axis2DegPerSec:  c.a2.VelocityDeg(),
		RAHours:         math.Mod(lst-ha/15.0+48.0, 24.0),
		DecDeg:          dec,
		HourAngleDeg:    ha,
		Target:          c.target,
		EncoderDegraded: c.a1.EncoderDegraded() || c.a2.EncoderDegraded(),
		Time:            wall,

		Axis1BacklashSteps: c.a1.BacklashTotalSteps(),
		Axis2BacklashSteps: c.a2.BacklashTotalSteps(),
	}
	if c.fault != nil {
		st.Fault = c.fault.Error()
	}
	if c.cmdErr != nil {
		st.LastCommandError = c.cmdErr.Error()
	}
	if c.tracker != nil {
		st.RejectedCorrections = c.tracker.RejectedCorrections()
	}
	c.status.Store(st)
}
