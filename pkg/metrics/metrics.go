// Metrics collection for the Nightwatch mount controller
//
// Counters, gauges and histograms rendered in Prometheus text format.
// The control tick only touches atomics; rendering happens on the
// telemetry server's goroutine.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Labels are metric labels as key-value pairs
type Labels map[string]string

func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		v := strings.ReplaceAll(labels[k], "\\", "\\\\")
		v = strings.ReplaceAll(v, "\"", "\\\"")
		fmt.Fprintf(&sb, "%s=%q", k, v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Metric is implemented by all metric types
type Metric interface {
	Name() string
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing value
type Counter struct {
	name   string
	help   string
	values sync.Map // labelKey -> *counterValue
}

type counterValue struct {
	labels Labels
	value  uint64
}

// NewCounter creates a counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string { return c.name }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by delta
func (c *Counter) Add(labels Labels, delta uint64) {
	val, _ := c.values.LoadOrStore(labelKey(labels), &counterValue{labels: labels})
	atomic.AddUint64(&val.(*counterValue).value, delta)
}

// Get returns the counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	val, ok := c.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&val.(*counterValue).value)
}

func (c *Counter) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
	c.values.Range(func(_, value interface{}) bool {
		cv := value.(*counterValue)
		fmt.Fprintf(sb, "%s%s %d\n", c.name, formatLabels(cv.labels),
			atomic.LoadUint64(&cv.value))
		return true
	})
}

// Gauge is a value that can go up and down
type Gauge struct {
	name   string
	help   string
	values sync.Map // labelKey -> *gaugeValue
}

type gaugeValue struct {
	labels Labels
	bits   uint64 // float64 bits, accessed atomically
}

// NewGauge creates a gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string { return g.name }

// Set sets the gauge value
func (g *Gauge) Set(labels Labels, value float64) {
	val, _ := g.values.LoadOrStore(labelKey(labels), &gaugeValue{labels: labels})
	atomic.StoreUint64(&val.(*gaugeValue).bits, math.Float64bits(value))
}

// Get returns the gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	val, ok := g.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return math.Float64frombits(atomic.LoadUint64(&val.(*gaugeValue).bits))
}

func (g *Gauge) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
	g.values.Range(func(_, value interface{}) bool {
		gv := value.(*gaugeValue)
		fmt.Fprintf(sb, "%s%s %g\n", g.name, formatLabels(gv.labels),
			math.Float64frombits(atomic.LoadUint64(&gv.bits)))
		return true
	})
}

// Histogram tracks the distribution of observations
type Histogram struct {
	name    string
	help    string
	buckets []float64
	values  sync.Map // labelKey -> *histogramValue
}

type histogramValue struct {
	labels  Labels
	mu      sync.Mutex
	count   uint64
	sum     float64
	buckets []uint64
}

// NewHistogram creates a histogram with the given bucket bounds
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &Histogram{name: name, help: help, buckets: sorted}
}

// ExponentialBuckets creates count buckets starting at start with factor multiplier
func ExponentialBuckets(start, factor float64, count int) []float64 {
	buckets := make([]float64, count)
	for i := 0; i < count; i++ {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

func (h *Histogram) Name() string { return h.name }

// Observe records a value
func (h *Histogram) Observe(labels Labels, value float64) {
	val, _ := h.values.LoadOrStore(labelKey(labels), &histogramValue{
		labels:  labels,
		buckets: make([]uint64, len(h.buckets)),
	})
	hv := val.(*histogramValue)
	hv.mu.Lock()
	hv.count++
	hv.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			hv.buckets[i]++
		}
	}
	hv.mu.Unlock()
}

// Count returns the observation count for labels
func (h *Histogram) Count(labels Labels) uint64 {
	val, ok := h.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	hv := val.(*histogramValue)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	return hv.count
}

func (h *Histogram) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	h.values.Range(func(_, value interface{}) bool {
		hv := value.(*histogramValue)
		hv.mu.Lock()
		count := hv.count
		sum := hv.sum
		counts := make([]uint64, len(hv.buckets))
		copy(counts, hv.buckets)
		hv.mu.Unlock()

		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += counts[i]
			bl := Labels{}
			for k, v := range hv.labels {
				bl[k] = v
			}
			bl["le"] = fmt.Sprintf("%g", bound)
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(bl), cumulative)
		}
		il := Labels{}
		for k, v := range hv.labels {
			il[k] = v
		}
		il["le"] = "+Inf"
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(il), count)
		fmt.Fprintf(sb, "%s_sum%s %g\n", h.name, formatLabels(hv.labels), sum)
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, formatLabels(hv.labels), count)
		return true
	})
}

// Registry holds registered metrics in registration order
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a metrics registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on a duplicate name
func (r *Registry) MustRegister(metric Metric) {
	if err := r.Register(metric); err != nil {
		panic(err)
	}
}

// Gather renders all metrics in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		if m, ok := r.metrics[name]; ok {
			m.Write(&sb)
		}
	}
	return sb.String()
}
