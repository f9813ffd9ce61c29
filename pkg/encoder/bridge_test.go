// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package encoder

import (
	"math"
	"testing"
	"time"

	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/errors"
)

// fakeConn replays scripted responses and records written commands.
type fakeConn struct {
	responses []string
	writes    []string
	flushed   int
}

func (f *fakeConn) Write(b []byte) (int, error) {
	f.writes = append(f.writes, string(b))
	return len(b), nil
}

func (f *fakeConn) ReadUntil(delim byte, deadline time.Duration) ([]byte, error) {
	if len(f.responses) == 0 {
		return nil, errors.New(errors.ErrEncoderFault, "no scripted response")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return []byte(r), nil
}

func (f *fakeConn) Flush() error {
	f.flushed++
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestBridgeRead(t *testing.T) {
	conn := &fakeConn{responses: []string{"4096,-2048"}}
	b := NewBridge(conn, BridgeConfig{})

	r, err := b.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Axis1Counts != 4096 || r.Axis2Counts != -2048 {
		t.Errorf("counts = %d,%d, want 4096,-2048", r.Axis1Counts, r.Axis2Counts)
	}
	// 4096/16384 of a revolution is 90 degrees
	if math.Abs(r.Axis1Deg-90.0) > 1e-9 {
		t.Errorf("axis1 = %.4f deg, want 90", r.Axis1Deg)
	}
	if math.Abs(r.Axis2Deg-(-45.0)) > 1e-9 {
		t.Errorf("axis2 = %.4f deg, want -45", r.Axis2Deg)
	}
	if conn.writes[0] != ":Q#" {
		t.Errorf("wrote %q, want :Q#", conn.writes[0])
	}
	if conn.flushed != 1 {
		t.Errorf("flushed %d times, want 1", conn.flushed)
	}
}

func TestBridgeReadMalformed(t *testing.T) {
	for _, resp := range []string{"", "4096", "a,b"} {
		conn := &fakeConn{responses: []string{resp}}
		b := NewBridge(conn, BridgeConfig{})
		if _, err := b.Read(); !errors.Is(err, errors.ErrEncoderFault) {
			t.Errorf("response %q: err = %v, want encoder fault", resp, err)
		}
	}
}

func TestBridgeSync(t *testing.T) {
	conn := &fakeConn{responses: []string{"OK"}}
	b := NewBridge(conn, BridgeConfig{})

	if err := b.Sync(100, -200); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if conn.writes[0] != ":Y100,-200#" {
		t.Errorf("wrote %q, want :Y100,-200#", conn.writes[0])
	}
}

func TestBridgeZeroRejected(t *testing.T) {
	conn := &fakeConn{responses: []string{"0"}}
	b := NewBridge(conn, BridgeConfig{})

	if err := b.Zero(); !errors.Is(err, errors.ErrEncoderFault) {
		t.Errorf("err = %v, want encoder fault", err)
	}
}

func TestCountsDegreesRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, -90, 179, -179} {
		counts := degreesToCounts(deg, 16384)
		got := countsToDegrees(counts, 16384)
		if math.Abs(got-deg) > 360.0/16384 {
			t.Errorf("deg %.1f: round trip gave %.4f", deg, got)
		}
	}
}

func TestSimTracksDriver(t *testing.T) {
	drv := driver.NewSim()
	enc := NewSim(drv, 24000, 19200, 16384)

	drv.SetPosition(coords.Axis1, 24000*30) // 30 degrees
	drv.SetPosition(coords.Axis2, 19200*45) // 45 degrees

	r, err := enc.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(r.Axis1Deg-30) > 0.05 {
		t.Errorf("axis1 = %.4f, want 30", r.Axis1Deg)
	}
	if math.Abs(r.Axis2Deg-45) > 0.05 {
		t.Errorf("axis2 = %.4f, want 45", r.Axis2Deg)
	}

	// Sync shifts the reported frame without touching the driver.
	if err := enc.Sync(0, 0); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	r, _ = enc.Read()
	if math.Abs(r.Axis1Deg) > 0.05 || math.Abs(r.Axis2Deg) > 0.05 {
		t.Errorf("after sync got %.4f,%.4f, want 0,0", r.Axis1Deg, r.Axis2Deg)
	}

	enc.InjectFault(true)
	if _, err := enc.Read(); !errors.Is(err, errors.ErrEncoderFault) {
		t.Errorf("err = %v, want encoder fault", err)
	}
}
