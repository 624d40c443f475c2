// Package obs collects lightweight emulator counters and latency stats,
// and exposes them to Prometheus.
package obs

import (
	"sync/atomic"
	"time"
)

// Counter identifies one emulator counter.
type Counter int

const (
	CounterCommands Counter = iota
	CounterQuoteTicks
	CounterTradeTicks
	CounterOrdersEmulated
	CounterOrdersReleased
	CounterOrdersCanceled
	CounterOrdersExpired
	CounterTriggersFired
	CounterEventsPublished
	CounterQueueDrops
	counterEnd
)

var counterNames = [counterEnd]string{
	"commands_total",
	"quote_ticks_total",
	"trade_ticks_total",
	"orders_emulated_total",
	"orders_released_total",
	"orders_canceled_total",
	"orders_expired_total",
	"triggers_fired_total",
	"events_published_total",
	"queue_drops_total",
}

// Name returns the exported metric name for a counter.
func (c Counter) Name() string {
	if c < 0 || c >= counterEnd {
		return "unknown"
	}
	return counterNames[c]
}

// Metrics collects emulator counters and latency stats. Safe for concurrent
// reads from the metrics server while the emulator goroutine writes.
type Metrics struct {
	counts [counterEnd]uint64

	executeLatency LatencyStats
	iterateLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Counts         map[Counter]uint64
	ExecuteLatency LatencySnapshot
	IterateLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(c Counter) {
	if m == nil || c < 0 || c >= counterEnd {
		return
	}
	atomic.AddUint64(&m.counts[c], 1)
}

// Count reads one counter.
func (m *Metrics) Count(c Counter) uint64 {
	if m == nil || c < 0 || c >= counterEnd {
		return 0
	}
	return atomic.LoadUint64(&m.counts[c])
}

// ObserveExecute measures one command execution.
func (m *Metrics) ObserveExecute(d time.Duration) {
	if m == nil {
		return
	}
	m.executeLatency.Observe(d)
}

// ObserveIterate measures one matching-core scan.
func (m *Metrics) ObserveIterate(d time.Duration) {
	if m == nil {
		return
	}
	m.iterateLatency.Observe(d)
}

// Reset zeroes all counters and latency stats.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	for i := range m.counts {
		atomic.StoreUint64(&m.counts[i], 0)
	}
	m.executeLatency.reset()
	m.iterateLatency.reset()
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counts := make(map[Counter]uint64)
	for i := range m.counts {
		if v := atomic.LoadUint64(&m.counts[i]); v > 0 {
			counts[Counter(i)] = v
		}
	}
	return Snapshot{
		Counts:         counts,
		ExecuteLatency: m.executeLatency.Snapshot(),
		IterateLatency: m.iterateLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}

func (l *LatencyStats) reset() {
	atomic.StoreUint64(&l.count, 0)
	atomic.StoreUint64(&l.sum, 0)
	atomic.StoreUint64(&l.min, 0)
	atomic.StoreUint64(&l.max, 0)
}
