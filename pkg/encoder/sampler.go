// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package encoder

import (
	"context"
	"sync/atomic"
	"time"

	"nightwatch-mount/pkg/log"
)

// Sampler polls an encoder on its own goroutine and publishes the most
// recent reading, so the control tick never blocks on serial I/O.
type Sampler struct {
	src      Interface
	interval time.Duration
	logger   *log.Logger

	latest   atomic.Pointer[Reading]
	failures atomic.Int64
}

// NewSampler creates a sampler polling src every interval.
func NewSampler(src Interface, interval time.Duration, logger *log.Logger) *Sampler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Sampler{
		src:      src,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Sampler) poll() {
	r, err := s.src.Read()
	if err != nil {
		n := s.failures.Add(1)
		// Log the first failure of a streak, then back off.
		if n == 1 && s.logger != nil {
			s.logger.WithError(err).Warn("encoder read failed")
		}
		return
	}
	if s.failures.Swap(0) > 1 && s.logger != nil {
		s.logger.Info("encoder reads recovered")
	}
	s.latest.Store(&r)
}

// Latest returns the most recent reading, or ok=false if none has been
// taken yet. Safe to call from the control tick.
func (s *Sampler) Latest() (Reading, bool) {
	p := s.latest.Load()
	if p == nil {
		return Reading{}, false
	}
	return *p, true
}

// Age returns how long ago the latest reading was taken.
func (s *Sampler) Age(now time.Time) (time.Duration, bool) {
	p := s.latest.Load()
	if p == nil {
		return 0, false
	}
	return now.Sub(p.Time), true
}

// ConsecutiveFailures reports the current failure streak length.
func (s *Sampler) ConsecutiveFailures() int64 {
	return s.failures.Load()
}
