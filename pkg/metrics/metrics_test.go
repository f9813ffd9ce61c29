// Unit tests for the metrics registry
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"strings"
	"sync"
	"testing"
)

func TestCounterBasic(t *testing.T) {
	c := NewCounter("test_counter", "A test counter")

	if v := c.Get(nil); v != 0 {
		t.Errorf("expected initial value 0, got %d", v)
	}

	c.Inc(nil)
	c.Add(nil, 10)
	if v := c.Get(nil); v != 11 {
		t.Errorf("expected value 11, got %d", v)
	}

	if c.Name() != "test_counter" {
		t.Errorf("expected name 'test_counter', got '%s'", c.Name())
	}
}

func TestCounterWithLabels(t *testing.T) {
	c := NewCounter("stall_events_total", "Stall detections")

	c.Inc(Labels{"axis": "axis1"})
	c.Inc(Labels{"axis": "axis1"})
	c.Inc(Labels{"axis": "axis2"})

	if v := c.Get(Labels{"axis": "axis1"}); v != 2 {
		t.Errorf("expected axis1 count 2, got %d", v)
	}
	if v := c.Get(Labels{"axis": "axis2"}); v != 1 {
		t.Errorf("expected axis2 count 1, got %d", v)
	}
	if v := c.Get(Labels{"axis": "axis3"}); v != 0 {
		t.Errorf("expected axis3 count 0, got %d", v)
	}
}

func TestCounterConcurrency(t *testing.T) {
	c := NewCounter("concurrent_counter", "Test concurrent access")
	var wg sync.WaitGroup

	numGoroutines := 100
	incsPerGoroutine := 1000

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < incsPerGoroutine; j++ {
				c.Inc(nil)
			}
		}()
	}

	wg.Wait()

	expected := uint64(numGoroutines * incsPerGoroutine)
	if v := c.Get(nil); v != expected {
		t.Errorf("expected %d, got %d", expected, v)
	}
}

func TestGaugeSetGet(t *testing.T) {
	g := NewGauge("axis_position", "Axis position")

	if v := g.Get(nil); v != 0 {
		t.Errorf("expected initial value 0, got %f", v)
	}

	g.Set(Labels{"axis": "axis1"}, 42.5)
	g.Set(Labels{"axis": "axis2"}, -89.0)

	if v := g.Get(Labels{"axis": "axis1"}); v != 42.5 {
		t.Errorf("expected 42.5, got %f", v)
	}
	if v := g.Get(Labels{"axis": "axis2"}); v != -89.0 {
		t.Errorf("expected -89.0, got %f", v)
	}
}

func TestHistogramObserve(t *testing.T) {
	h := NewHistogram("tick_duration", "Tick execution time",
		[]float64{0.001, 0.005, 0.01})

	h.Observe(nil, 0.0005)
	h.Observe(nil, 0.002)
	h.Observe(nil, 0.02)

	if c := h.Count(nil); c != 3 {
		t.Errorf("expected count 3, got %d", c)
	}
	if c := h.Count(Labels{"axis": "axis1"}); c != 0 {
		t.Errorf("expected labeled count 0, got %d", c)
	}
}

func TestExponentialBuckets(t *testing.T) {
	buckets := ExponentialBuckets(1, 2, 5)
	expected := []float64{1, 2, 4, 8, 16}

	if len(buckets) != len(expected) {
		t.Fatalf("expected %d buckets, got %d", len(expected), len(buckets))
	}
	for i, v := range expected {
		if buckets[i] != v {
			t.Errorf("bucket %d: expected %f, got %f", i, v, buckets[i])
		}
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("my_counter", "A counter")

	if err := r.Register(c); err != nil {
		t.Errorf("failed to register counter: %v", err)
	}
	if err := r.Register(c); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestRegistryGather(t *testing.T) {
	r := NewRegistry()

	c := NewCounter("test_faults_total", "Fault transitions")
	c.Add(Labels{"axis": "axis1"}, 3)
	r.MustRegister(c)

	g := NewGauge("test_position", "Commanded position")
	g.Set(nil, 25.5)
	r.MustRegister(g)

	output := r.Gather()

	if !strings.Contains(output, "# HELP test_faults_total Fault transitions") {
		t.Error("missing counter HELP")
	}
	if !strings.Contains(output, "# TYPE test_faults_total counter") {
		t.Error("missing counter TYPE")
	}
	if !strings.Contains(output, `test_faults_total{axis="axis1"} 3`) {
		t.Error("missing counter value")
	}
	if !strings.Contains(output, "# TYPE test_position gauge") {
		t.Error("missing gauge TYPE")
	}
	if !strings.Contains(output, "test_position 25.5") {
		t.Error("missing gauge value")
	}
}

func TestHistogramGather(t *testing.T) {
	r := NewRegistry()

	h := NewHistogram("test_duration_seconds", "Tick duration",
		[]float64{0.1, 0.5, 1.0})
	h.Observe(nil, 0.05)
	h.Observe(nil, 0.3)
	h.Observe(nil, 2.0)
	r.MustRegister(h)

	output := r.Gather()

	if !strings.Contains(output, "# TYPE test_duration_seconds histogram") {
		t.Error("missing histogram TYPE")
	}
	if !strings.Contains(output, `test_duration_seconds_bucket{le="0.1"} 1`) {
		t.Error("missing bucket 0.1")
	}
	if !strings.Contains(output, `test_duration_seconds_bucket{le="0.5"} 2`) {
		t.Error("missing bucket 0.5")
	}
	if !strings.Contains(output, `test_duration_seconds_bucket{le="+Inf"} 3`) {
		t.Error("missing bucket +Inf")
	}
	if !strings.Contains(output, "test_duration_seconds_count 3") {
		t.Error("missing histogram count")
	}
}

func TestMountMetricsSet(t *testing.T) {
	r := NewRegistry()
	m := NewMountMetrics(r)

	m.ObserveAxis("axis1", 14.5, 0.004, 480)
	m.StallEvents.Inc(Labels{"axis": "axis2"})
	m.TickDuration.Observe(nil, 0.0003)

	if v := m.AxisPosition.Get(Labels{"axis": "axis1"}); v != 14.5 {
		t.Errorf("expected position 14.5, got %f", v)
	}
	if v := m.StallEvents.Get(Labels{"axis": "axis2"}); v != 1 {
		t.Errorf("expected 1 stall event, got %d", v)
	}

	output := r.Gather()
	if !strings.Contains(output, "mount_tick_duration_seconds_count") {
		t.Error("tick duration histogram missing from output")
	}
	if !strings.Contains(output, `mount_axis_position_degrees{axis="axis1"} 14.5`) {
		t.Error("axis position gauge missing from output")
	}
}
