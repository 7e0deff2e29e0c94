package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed    atomic.Uint64
	fills              atomic.Uint64
	bookChanges        atomic.Uint64
	contractViolations atomic.Uint64
	anomalies          atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeFeeds atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records an event processing with latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordFill records a processed fill report.
func (m *Metrics) RecordFill() {
	m.fills.Add(1)
}

// RecordBookChange records a book mutation.
func (m *Metrics) RecordBookChange() {
	m.bookChanges.Add(1)
}

// RecordContractViolation records a halted event stream.
func (m *Metrics) RecordContractViolation() {
	m.contractViolations.Add(1)
}

// RecordAnomaly records a reconciliation anomaly that was skipped over.
func (m *Metrics) RecordAnomaly() {
	m.anomalies.Add(1)
}

// IncrementFeeds increments active feed connections by 1.
func (m *Metrics) IncrementFeeds() {
	m.activeFeeds.Add(1)
}

// DecrementFeeds decrements active feed connections by 1.
func (m *Metrics) DecrementFeeds() {
	m.activeFeeds.Add(-1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	EventsProcessed    uint64
	Fills              uint64
	BookChanges        uint64
	ContractViolations uint64
	Anomalies          uint64
	AvgLatency         time.Duration
	ActiveFeeds        int32
}

// GetSnapshot returns a consistent-enough view of the current metrics.
func (m *Metrics) GetSnapshot() Snapshot {
	s := Snapshot{
		EventsProcessed:    m.eventsProcessed.Load(),
		Fills:              m.fills.Load(),
		BookChanges:        m.bookChanges.Load(),
		ContractViolations: m.contractViolations.Load(),
		Anomalies:          m.anomalies.Load(),
		ActiveFeeds:        m.activeFeeds.Load(),
	}
	if count := m.latencyCount.Load(); count > 0 {
		s.AvgLatency = time.Duration(m.latencySumNs.Load() / int64(count))
	}
	return s
}

// Reset zeroes all counters. Intended for tests.
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.fills.Store(0)
	m.bookChanges.Store(0)
	m.contractViolations.Store(0)
	m.anomalies.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeFeeds.Store(0)
}
