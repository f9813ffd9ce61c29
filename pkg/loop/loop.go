// Package loop runs the fixed-rate control tick.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package loop

import (
	"context"
	"sync"
	"time"
)

// Ticker is driven once per control period. now is monotonic seconds
// since the loop started; wall is UTC for sky calculations.
type Ticker interface {
	Tick(now float64, wall time.Time)
}

// Stats describes scheduler health.
type Stats struct {
	Ticks       uint64
	Overruns    uint64
	LastTickSec float64
	MaxTickSec  float64
}

// Loop drives a Ticker at a fixed rate on a single goroutine. The tick
// body must never block; anything that does I/O runs in AfterTick,
// which executes between ticks.
type Loop struct {
	period time.Duration
	ticker Ticker

	// AfterTick, when set, runs after every tick body, outside the
	// real-time budget accounting. Used to drain deferred logs and
	// write persisted state.
	AfterTick func()

	start time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a loop ticking at tickHz.
func New(tickHz float64, t Ticker) *Loop {
	if tickHz <= 0 {
		tickHz = 100
	}
	return &Loop{
		period: time.Duration(float64(time.Second) / tickHz),
		ticker: t,
		start:  time.Now(),
	}
}

// Period returns the tick period.
func (l *Loop) Period() time.Duration { return l.period }

// Monotonic returns seconds since the loop was created.
func (l *Loop) Monotonic() float64 {
	return time.Since(l.start).Seconds()
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	tick := time.NewTicker(l.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			l.Step(l.Monotonic(), time.Now().UTC())
		}
	}
}

// Step runs one tick. Exposed so tests and the simulator can drive the
// loop with synthetic time.
func (l *Loop) Step(now float64, wall time.Time) {
	began := time.Now()
	l.ticker.Tick(now, wall)
	took := time.Since(began)

	l.mu.Lock()
	l.stats.Ticks++
	l.stats.LastTickSec = took.Seconds()
	if took.Seconds() > l.stats.MaxTickSec {
		l.stats.MaxTickSec = took.Seconds()
	}
	if took > l.period {
		l.stats.Overruns++
	}
	l.mu.Unlock()

	if l.AfterTick != nil {
		l.AfterTick()
	}
}

// Stats returns a copy of the scheduler counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
