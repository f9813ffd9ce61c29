// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countTicker struct {
	ticks atomic.Int64
	last  atomic.Value // float64
}

func (c *countTicker) Tick(now float64, wall time.Time) {
	c.ticks.Add(1)
	c.last.Store(now)
}

func TestStepAccounting(t *testing.T) {
	ct := &countTicker{}
	l := New(100, ct)

	var after int
	l.AfterTick = func() { after++ }

	l.Step(0.01, time.Now())
	l.Step(0.02, time.Now())

	if got := ct.ticks.Load(); got != 2 {
		t.Errorf("ticks = %d, want 2", got)
	}
	if after != 2 {
		t.Errorf("after-tick ran %d times, want 2", after)
	}
	st := l.Stats()
	if st.Ticks != 2 {
		t.Errorf("stats.Ticks = %d, want 2", st.Ticks)
	}
	if got := ct.last.Load().(float64); got != 0.02 {
		t.Errorf("last now = %v, want 0.02", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ct := &countTicker{}
	l := New(1000, ct)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
	if ct.ticks.Load() == 0 {
		t.Error("loop never ticked")
	}
}

func TestDefaultRate(t *testing.T) {
	l := New(0, &countTicker{})
	if l.Period() != 10*time.Millisecond {
		t.Errorf("period = %v, want 10ms", l.Period())
	}
}
