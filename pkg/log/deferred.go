// Deferred logging for the real-time tick
//
// The control tick must not perform I/O, so components running inside the
// tick append records to a bounded ring and the scheduler drains the ring
// to a real Logger after the tick's work is done. Records that arrive when
// the ring is full are counted and dropped.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import "sync"

// Record is a single deferred log record
type Record struct {
	Level  LogLevel
	Msg    string
	Fields Fields
}

// Ring is a bounded buffer of deferred log records.
// Append is safe for a single producer (the tick goroutine); Drain may be
// called from the same goroutine after the tick body completes.
type Ring struct {
	mu      sync.Mutex
	records []Record
	head    int
	count   int
	dropped uint64
}

// NewRing creates a ring holding at most capacity records
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{records: make([]Record, capacity)}
}

// Append adds a record, dropping it if the ring is full
func (r *Ring) Append(level LogLevel, msg string, fields Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == len(r.records) {
		r.dropped++
		return
	}
	idx := (r.head + r.count) % len(r.records)
	r.records[idx] = Record{Level: level, Msg: msg, Fields: fields}
	r.count++
}

// Dropped returns the number of records lost to a full ring
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Drain emits all buffered records through the logger and empties the ring
func (r *Ring) Drain(logger *Logger) {
	r.mu.Lock()
	n := r.count
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.records[(r.head+i)%len(r.records)])
	}
	r.head = 0
	r.count = 0
	r.mu.Unlock()

	for _, rec := range out {
		entry := logger.WithFields(rec.Fields)
		switch rec.Level {
		case DEBUG:
			entry.Debug(rec.Msg)
		case WARN:
			entry.Warn(rec.Msg)
		case ERROR:
			entry.Error(rec.Msg)
		default:
			entry.Info(rec.Msg)
		}
	}
}
