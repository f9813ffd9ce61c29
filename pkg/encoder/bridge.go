// EncoderBridge serial protocol client.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package encoder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nightwatch-mount/pkg/errors"
)

// Conn is the transport the bridge talks over. *serial.Port satisfies it.
type Conn interface {
	Write([]byte) (int, error)
	ReadUntil(delim byte, deadline time.Duration) ([]byte, error)
	Flush() error
	Close() error
}

// Bridge talks the EncoderBridge LX200-style serial protocol.
//
// Commands are framed ":<cmd>#" and every response is terminated by '#'.
// The board reports absolute counts within one revolution for both axes.
type Bridge struct {
	conn         Conn
	countsPerRev [2]int64
	timeout      time.Duration
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Counts per full revolution for each axis (default 16384, 14-bit).
	Axis1CountsPerRev int64
	Axis2CountsPerRev int64

	// Per-command response deadline (default 1 second).
	Timeout time.Duration
}

// NewBridge wraps conn with the EncoderBridge protocol.
func NewBridge(conn Conn, cfg BridgeConfig) *Bridge {
	if cfg.Axis1CountsPerRev == 0 {
		cfg.Axis1CountsPerRev = 16384
	}
	if cfg.Axis2CountsPerRev == 0 {
		cfg.Axis2CountsPerRev = 16384
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return &Bridge{
		conn:         conn,
		countsPerRev: [2]int64{cfg.Axis1CountsPerRev, cfg.Axis2CountsPerRev},
		timeout:      cfg.Timeout,
	}
}

// Read queries both axis positions with the Q command.
func (b *Bridge) Read() (Reading, error) {
	resp, err := b.command("Q")
	if err != nil {
		return Reading{}, err
	}

	parts := strings.Split(strings.TrimSpace(resp), ",")
	if len(parts) < 2 {
		return Reading{}, errors.EncoderFaultError("bridge",
			fmt.Errorf("malformed position response %q", resp))
	}

	c1, err1 := strconv.ParseInt(parts[0], 10, 64)
	c2, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return Reading{}, errors.EncoderFaultError("bridge",
			fmt.Errorf("malformed position response %q", resp))
	}

	return Reading{
		Axis1Counts: c1,
		Axis2Counts: c2,
		Axis1Deg:    countsToDegrees(c1, b.countsPerRev[0]),
		Axis2Deg:    countsToDegrees(c2, b.countsPerRev[1]),
		Time:        time.Now(),
	}, nil
}

// Sync sets the bridge counters to the given values without moving.
func (b *Bridge) Sync(axis1Counts, axis2Counts int64) error {
	resp, err := b.command(fmt.Sprintf("Y%d,%d", axis1Counts, axis2Counts))
	if err != nil {
		return err
	}
	return checkAck("Y", resp)
}

// SyncDegrees is Sync with positions given in mechanical degrees.
func (b *Bridge) SyncDegrees(axis1Deg, axis2Deg float64) error {
	return b.Sync(
		degreesToCounts(axis1Deg, b.countsPerRev[0]),
		degreesToCounts(axis2Deg, b.countsPerRev[1]),
	)
}

// Zero resets both counters at the current position.
func (b *Bridge) Zero() error {
	resp, err := b.command("Z")
	if err != nil {
		return err
	}
	return checkAck("Z", resp)
}

// Status queries the board health with the S command.
func (b *Bridge) Status() (string, error) {
	return b.command("S")
}

// Version returns the bridge firmware version string.
func (b *Bridge) Version() (string, error) {
	return b.command("V")
}

// Close closes the underlying transport.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

func (b *Bridge) command(cmd string) (string, error) {
	// Stale bytes from a timed-out exchange would corrupt this one.
	if err := b.conn.Flush(); err != nil {
		return "", errors.EncoderFaultError("bridge", err)
	}
	if _, err := b.conn.Write([]byte(":" + cmd + "#")); err != nil {
		return "", errors.EncoderFaultError("bridge", err)
	}
	resp, err := b.conn.ReadUntil('#', b.timeout)
	if err != nil {
		return "", errors.EncoderFaultError("bridge", err)
	}
	return string(resp), nil
}

func checkAck(cmd, resp string) error {
	if resp == "1" || resp == "OK" {
		return nil
	}
	return errors.EncoderFaultError("bridge",
		fmt.Errorf("command %s rejected: %q", cmd, resp))
}

func countsToDegrees(counts, countsPerRev int64) float64 {
	deg := float64(counts) / float64(countsPerRev) * 360.0
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}

func degreesToCounts(deg float64, countsPerRev int64) int64 {
	for deg < 0 {
		deg += 360
	}
	return int64(deg/360.0*float64(countsPerRev) + 0.5)
}
