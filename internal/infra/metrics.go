package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	ticksRouted     atomic.Uint64
	mergedBars      atomic.Uint64
	ordersSubmitted atomic.Uint64
	ordersRejected  atomic.Uint64
	tradesFilled    atomic.Uint64
	snapshotsSaved  atomic.Uint64
	errorsTotal     atomic.Uint64

	// Gauges
	activeFeeds atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records one routed market tick.
func (m *Metrics) RecordTick() {
	m.ticksRouted.Add(1)
}

// RecordMergedBar records one merged bar delivery.
func (m *Metrics) RecordMergedBar() {
	m.mergedBars.Add(1)
}

// RecordOrderSubmitted records an order accepted for dispatch.
func (m *Metrics) RecordOrderSubmitted() {
	m.ordersSubmitted.Add(1)
}

// RecordOrderRejected records an order declined before dispatch.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// RecordTrade records an execution fill.
func (m *Metrics) RecordTrade() {
	m.tradesFilled.Add(1)
}

// RecordSnapshot records a persisted runtime snapshot.
func (m *Metrics) RecordSnapshot() {
	m.snapshotsSaved.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementFeeds increments active feed connections by 1.
func (m *Metrics) IncrementFeeds() {
	m.activeFeeds.Add(1)
}

// DecrementFeeds decrements active feed connections by 1.
func (m *Metrics) DecrementFeeds() {
	m.activeFeeds.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksRouted     uint64
	MergedBars      uint64
	OrdersSubmitted uint64
	OrdersRejected  uint64
	TradesFilled    uint64
	SnapshotsSaved  uint64
	ErrorsTotal     uint64
	ActiveFeeds     int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TicksRouted:     m.ticksRouted.Load(),
		MergedBars:      m.mergedBars.Load(),
		OrdersSubmitted: m.ordersSubmitted.Load(),
		OrdersRejected:  m.ordersRejected.Load(),
		TradesFilled:    m.tradesFilled.Load(),
		SnapshotsSaved:  m.snapshotsSaved.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		ActiveFeeds:     m.activeFeeds.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksRouted.Store(0)
	m.mergedBars.Store(0)
	m.ordersSubmitted.Store(0)
	m.ordersRejected.Store(0)
	m.tradesFilled.Store(0)
	m.snapshotsSaved.Store(0)
	m.errorsTotal.Store(0)
	m.activeFeeds.Store(0)
}
