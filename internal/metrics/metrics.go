// Package metrics provides an in-process counters and latency collector
// exposed on the /metrics endpoint.
package metrics

import (
	"sync"
	"time"
)

// Collector accumulates named counters and rolling latency samples.
type Collector struct {
	counters  map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

// NewCollector constructs an empty collector.
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// Inc increments the named counter.
func (c *Collector) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

// Observe records a latency sample, keeping the last 100 per name.
func (c *Collector) Observe(name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	samples := append(c.latencies[name], d)
	if len(samples) > 100 {
		samples = samples[len(samples)-100:]
	}
	c.latencies[name] = samples
}

// Counters returns a copy of all counter values.
func (c *Collector) Counters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		out[name] = v
	}
	return out
}

// Latencies returns average latency in milliseconds per name.
func (c *Collector) Latencies() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.latencies))
	for name, samples := range c.latencies {
		if len(samples) == 0 {
			continue
		}
		var sum time.Duration
		for _, d := range samples {
			sum += d
		}
		out[name] = float64(sum) / float64(len(samples)) / float64(time.Millisecond)
	}
	return out
}
