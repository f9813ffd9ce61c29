// Pier side and the mechanical axis mapping for a German equatorial mount.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coords

import (
	"encoding/json"
	"fmt"
)

// PierSide identifies which side of the polar axis the tube rides on.
type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

func (p PierSide) String() string {
	switch p {
	case PierEast:
		return "east"
	case PierWest:
		return "west"
	default:
		return "unknown"
	}
}

// ParsePierSide converts a pier side name back to its value.
func ParsePierSide(s string) (PierSide, error) {
	switch s {
	case "east":
		return PierEast, nil
	case "west":
		return PierWest, nil
	case "unknown", "":
		return PierUnknown, nil
	}
	return PierUnknown, fmt.Errorf("unknown pier side %q", s)
}

// MarshalJSON encodes the pier side as its name.
func (p PierSide) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a pier side name.
func (p *PierSide) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	side, err := ParsePierSide(s)
	if err != nil {
		return err
	}
	*p = side
	return nil
}

// Opposite returns the other pier side.
func (p PierSide) Opposite() PierSide {
	switch p {
	case PierEast:
		return PierWest
	case PierWest:
		return PierEast
	default:
		return PierUnknown
	}
}

// Mechanical is the pair of mechanical axis angles in degrees.
type Mechanical struct {
	Axis1Deg float64 // polar (RA) axis
	Axis2Deg float64 // declination axis
}

// MechanicalFor maps an hour angle / declination pair onto mechanical axis
// angles for a pier side. On the east side the axes read the sky directly;
// the west side is the flipped configuration (axis1 rotated half a turn,
// axis2 mirrored through the pole).
func MechanicalFor(side PierSide, haDeg, decDeg float64) Mechanical {
	switch side {
	case PierWest:
		return Mechanical{
			Axis1Deg: Wrap180(haDeg - 180),
			Axis2Deg: Wrap180(180 - decDeg),
		}
	default:
		return Mechanical{Axis1Deg: Wrap180(haDeg), Axis2Deg: decDeg}
	}
}

// SkyFor inverts MechanicalFor, recovering hour angle and declination.
func SkyFor(side PierSide, m Mechanical) (haDeg, decDeg float64) {
	switch side {
	case PierWest:
		return Wrap180(m.Axis1Deg + 180), Wrap180(180 - m.Axis2Deg)
	default:
		return m.Axis1Deg, m.Axis2Deg
	}
}

// HAWindow is the hour-angle range a pier side can serve, bounded by the
// configured past-meridian limit. The east side carries the tube up to
// limitE degrees past the meridian; the west side picks up targets from
// limitW degrees before it.
type HAWindow struct {
	MinDeg float64
	MaxDeg float64
}

// WindowFor returns the reachable hour-angle window for a pier side.
func WindowFor(side PierSide, pastMeridianLimitE, pastMeridianLimitW float64) HAWindow {
	switch side {
	case PierWest:
		return HAWindow{MinDeg: -pastMeridianLimitW, MaxDeg: 180}
	default:
		return HAWindow{MinDeg: -180, MaxDeg: pastMeridianLimitE}
	}
}

// Contains reports whether an hour angle lies inside the window.
func (w HAWindow) Contains(haDeg float64) bool {
	return haDeg >= w.MinDeg && haDeg <= w.MaxDeg
}

// TrackingMarginDeg returns how many degrees of hour angle remain before
// the window's upper bound; tracking advances hour angle at sidereal rate.
func (w HAWindow) TrackingMarginDeg(haDeg float64) float64 {
	return w.MaxDeg - haDeg
}
