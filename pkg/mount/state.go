// Mount operating states and status snapshots.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package mount

import (
	"encoding/json"
	"fmt"
	"time"

	"nightwatch-mount/pkg/coords"
)

// State is the mount's operating mode.
type State int

const (
	StateIdle State = iota
	StateTracking
	StateSlewing
	StateHoming
	StateParking
	StateParked
	StateFault
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateSlewing:
		return "slewing"
	case StateHoming:
		return "homing"
	case StateParking:
		return "parking"
	case StateParked:
		return "parked"
	case StateFault:
		return "fault"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st := StateIdle; st <= StateFault; st++ {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown mount state %q", name)
}

// Status is an immutable snapshot of the mount, published at the end of
// every tick and safe to read from any goroutine.
type Status struct {
	State    State           `json:"state"`
	PierSide coords.PierSide `json:"pier_side"`

	// Mechanical axis positions and rates.
	Axis1Deg       float64 `json:"axis1_deg"`
	Axis2Deg       float64 `json:"axis2_deg"`
	Axis1DegPerSec float64 `json:"axis1_deg_per_sec"`
	Axis2DegPerSec float64 `json:"axis2_deg_per_sec"`

	// Sky position derived from the mechanical state.
	RAHours      float64 `json:"ra_hours"`
	DecDeg       float64 `json:"dec_deg"`
	HourAngleDeg float64 `json:"hour_angle_deg"`

	// Active sky target, if any.
	Target *coords.Equatorial `json:"target,omitempty"`

	// Latched fault, empty when healthy.
	Fault string `json:"fault,omitempty"`

	// Most recent rejected command, for the status channel.
	LastCommandError string `json:"last_command_error,omitempty"`

	// Cumulative backlash takeup steps per axis.
	Axis1BacklashSteps int64 `json:"axis1_backlash_steps"`
	Axis2BacklashSteps int64 `json:"axis2_backlash_steps"`

	// Stall detection is running without encoder data.
	EncoderDegraded bool `json:"encoder_degraded"`

	// Tracking corrections dropped for exceeding their bound.
	RejectedCorrections int64 `json:"rejected_corrections"`

	Time time.Time `json:"time"`
}
