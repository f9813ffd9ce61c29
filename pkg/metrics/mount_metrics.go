// Mount controller metric set
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

// MountMetrics bundles the metrics published by the mount controller.
// All update methods are safe to call from the control loop goroutine.
type MountMetrics struct {
	registry *Registry

	TickDuration *Histogram
	TickOverruns *Counter

	AxisPosition   *Gauge
	AxisVelocity   *Gauge
	BacklashTakeup *Gauge

	StallEvents *Counter
	LimitEvents *Counter
	Faults      *Counter

	StateTransitions    *Counter
	MeridianFlips       *Counter
	RejectedCorrections *Gauge
	EncoderDegraded     *Gauge
	EncoderReadFailures *Counter
	PersistWrites       *Counter
}

// NewMountMetrics creates and registers the mount metric set
func NewMountMetrics(registry *Registry) *MountMetrics {
	m := &MountMetrics{
		registry: registry,
		TickDuration: NewHistogram("mount_tick_duration_seconds",
			"Control loop tick execution time",
			ExponentialBuckets(0.0001, 2, 10)),
		TickOverruns: NewCounter("mount_tick_overruns_total",
			"Ticks that exceeded the loop period"),
		AxisPosition: NewGauge("mount_axis_position_degrees",
			"Commanded axis position"),
		AxisVelocity: NewGauge("mount_axis_velocity_degrees_per_second",
			"Commanded axis velocity"),
		BacklashTakeup: NewGauge("mount_backlash_takeup_steps_total",
			"Cumulative backlash compensation steps emitted"),
		StallEvents: NewCounter("mount_stall_events_total",
			"Stall detections per axis"),
		LimitEvents: NewCounter("mount_limit_events_total",
			"Soft limit violations per axis"),
		Faults: NewCounter("mount_faults_total",
			"Transitions into the fault state"),
		StateTransitions: NewCounter("mount_state_transitions_total",
			"Mount state machine transitions"),
		MeridianFlips: NewCounter("mount_meridian_flips_total",
			"Automatic and goto-initiated meridian flips"),
		RejectedCorrections: NewGauge("mount_rejected_corrections_total",
			"Tracking rate corrections dropped by the safety clamp"),
		EncoderDegraded: NewGauge("mount_encoder_degraded",
			"1 while an axis is running open loop without encoder feedback"),
		EncoderReadFailures: NewCounter("mount_encoder_read_failures_total",
			"Failed encoder bridge reads"),
		PersistWrites: NewCounter("mount_persist_writes_total",
			"Park state file writes"),
	}
	registry.MustRegister(m.TickDuration)
	registry.MustRegister(m.TickOverruns)
	registry.MustRegister(m.AxisPosition)
	registry.MustRegister(m.AxisVelocity)
	registry.MustRegister(m.BacklashTakeup)
	registry.MustRegister(m.StallEvents)
	registry.MustRegister(m.LimitEvents)
	registry.MustRegister(m.Faults)
	registry.MustRegister(m.StateTransitions)
	registry.MustRegister(m.MeridianFlips)
	registry.MustRegister(m.RejectedCorrections)
	registry.MustRegister(m.EncoderDegraded)
	registry.MustRegister(m.EncoderReadFailures)
	registry.MustRegister(m.PersistWrites)
	return m
}

// Registry returns the registry the set is registered with
func (m *MountMetrics) Registry() *Registry { return m.registry }

func axisLabel(axis string) Labels { return Labels{"axis": axis} }

// ObserveAxis records per-axis position and velocity
func (m *MountMetrics) ObserveAxis(axis string, posDeg, velDegPerSec float64, backlashSteps int64) {
	l := axisLabel(axis)
	m.AxisPosition.Set(l, posDeg)
	m.AxisVelocity.Set(l, velDegPerSec)
	m.BacklashTakeup.Set(l, float64(backlashSteps))
}
