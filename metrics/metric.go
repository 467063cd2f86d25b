// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotonically non-decreasing integer count, mirrored onto
// a Prometheus counter for real scraping while remaining readable
// in-process without floats.
type Counter interface {
	Inc()
	Add(delta uint64)
	Read() uint64
}

type counter struct {
	value     uint64
	promCount prometheus.Counter
}

// NewCounter returns a Counter registered under name/help on reg.
func NewCounter(name, help string, reg prometheus.Registerer) (Counter, error) {
	pc := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(pc); err != nil {
		return nil, err
	}
	return &counter{promCount: pc}, nil
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(delta uint64) {
	atomic.AddUint64(&c.value, delta)
	if c.promCount != nil {
		c.promCount.Add(float64(delta))
	}
}

func (c *counter) Read() uint64 { return atomic.LoadUint64(&c.value) }

// Gauge is a signed integer value that may rise or fall, such as a ratio
// scaled by 10^6 (the fixedpoint.Scale convention) or a live queue depth.
type Gauge interface {
	Set(value int64)
	Add(delta int64)
	Read() int64
}

type gauge struct {
	value     int64
	promGauge prometheus.Gauge
}

// NewGauge returns a Gauge registered under name/help on reg.
func NewGauge(name, help string, reg prometheus.Registerer) (Gauge, error) {
	pg := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := reg.Register(pg); err != nil {
		return nil, err
	}
	return &gauge{promGauge: pg}, nil
}

func (g *gauge) Set(value int64) {
	atomic.StoreInt64(&g.value, value)
	if g.promGauge != nil {
		g.promGauge.Set(float64(value))
	}
}

func (g *gauge) Add(delta int64) {
	atomic.AddInt64(&g.value, delta)
	if g.promGauge != nil {
		g.promGauge.Add(float64(delta))
	}
}

func (g *gauge) Read() int64 { return atomic.LoadInt64(&g.value) }

// Averager tracks a running integer average (sum/count) without ever
// storing a float; Read returns the truncated integer quotient, and
// ReadScaled returns the average multiplied by scale for callers that want
// sub-unit precision reported as an integer (e.g. micro-units).
type Averager interface {
	Observe(value int64)
	Read() int64
	ReadScaled(scale int64) int64
}

type averager struct {
	mu    sync.RWMutex
	sum   int64
	count int64
}

// NewAverager returns a new in-process Averager. Unlike Counter/Gauge it
// has no direct Prometheus mirror (Prometheus has no native "integer
// average" type); callers that want it exported copy the quotient into a
// Gauge themselves.
func NewAverager() Averager {
	return &averager{}
}

func (a *averager) Observe(value int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += value
	a.count++
}

func (a *averager) Read() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

func (a *averager) ReadScaled(scale int64) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return (a.sum * scale) / a.count
}

// Registry is an in-process collection of named Counters, Gauges and
// Averagers, each optionally mirrored onto a Prometheus Registerer.
type Registry struct {
	mu        sync.RWMutex
	reg       prometheus.Registerer
	counters  map[string]Counter
	gauges    map[string]Gauge
	averagers map[string]Averager
}

// NewRegistry returns a Registry that mirrors every Counter/Gauge it
// creates onto reg (pass prometheus.NewRegistry() for an isolated one, or
// nil to skip Prometheus mirroring entirely).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{
		reg:       reg,
		counters:  make(map[string]Counter),
		gauges:    make(map[string]Gauge),
		averagers: make(map[string]Averager),
	}
}

// Counter returns (creating if needed) the named Counter.
func (r *Registry) Counter(name, help string) (Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, nil
	}
	c, err := r.newCounterLocked(name, help)
	if err != nil {
		return nil, err
	}
	r.counters[name] = c
	return c, nil
}

func (r *Registry) newCounterLocked(name, help string) (Counter, error) {
	if r.reg == nil {
		return &counter{}, nil
	}
	return NewCounter(name, help, r.reg)
}

// Gauge returns (creating if needed) the named Gauge.
func (r *Registry) Gauge(name, help string) (Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g, nil
	}
	var g Gauge
	var err error
	if r.reg == nil {
		g = &gauge{}
	} else {
		g, err = NewGauge(name, help, r.reg)
		if err != nil {
			return nil, err
		}
	}
	r.gauges[name] = g
	return g, nil
}

// Averager returns (creating if needed) the named Averager.
func (r *Registry) Averager(name string) Averager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.averagers[name]; ok {
		return a
	}
	a := NewAverager()
	r.averagers[name] = a
	return a
}

// GetCounter looks up a previously created Counter by name.
func (r *Registry) GetCounter(name string) (Counter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[name]
	if !ok {
		return nil, fmt.Errorf("metrics: counter %q not found", name)
	}
	return c, nil
}

// GetGauge looks up a previously created Gauge by name.
func (r *Registry) GetGauge(name string) (Gauge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gauges[name]
	if !ok {
		return nil, fmt.Errorf("metrics: gauge %q not found", name)
	}
	return g, nil
}
