package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	requestsTotal     atomic.Uint64
	transportErrors   atomic.Uint64
	applicationErrors atomic.Uint64
	nonceResyncs      atomic.Uint64
	ordersPlaced      atomic.Uint64
	ordersCancelled   atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	feedClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRequest records one exchange round trip with its latency.
func (m *Metrics) RecordRequest(latency time.Duration) {
	m.requestsTotal.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordTransportError records a timeout, connection or decoding failure.
func (m *Metrics) RecordTransportError() {
	m.transportErrors.Add(1)
}

// RecordApplicationError records a success:0 answer.
func (m *Metrics) RecordApplicationError() {
	m.applicationErrors.Add(1)
}

// RecordNonceResync records a nonce realignment after a stale-nonce answer.
func (m *Metrics) RecordNonceResync() {
	m.nonceResyncs.Add(1)
}

// RecordOrderPlaced records an accepted trade command.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderCancelled records an accepted cancel command.
func (m *Metrics) RecordOrderCancelled() {
	m.ordersCancelled.Add(1)
}

// IncrementFeedClients increments connected websocket clients by 1.
func (m *Metrics) IncrementFeedClients() {
	m.feedClients.Add(1)
}

// DecrementFeedClients decrements connected websocket clients by 1.
func (m *Metrics) DecrementFeedClients() {
	m.feedClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RequestsTotal     uint64    `json:"requests_total"`
	TransportErrors   uint64    `json:"transport_errors"`
	ApplicationErrors uint64    `json:"application_errors"`
	NonceResyncs      uint64    `json:"nonce_resyncs"`
	OrdersPlaced      uint64    `json:"orders_placed"`
	OrdersCancelled   uint64    `json:"orders_cancelled"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	FeedClients       int32     `json:"feed_clients"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		RequestsTotal:     m.requestsTotal.Load(),
		TransportErrors:   m.transportErrors.Load(),
		ApplicationErrors: m.applicationErrors.Load(),
		NonceResyncs:      m.nonceResyncs.Load(),
		OrdersPlaced:      m.ordersPlaced.Load(),
		OrdersCancelled:   m.ordersCancelled.Load(),
		AvgLatencyNs:      avgLatency,
		FeedClients:       m.feedClients.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.requestsTotal.Store(0)
	m.transportErrors.Store(0)
	m.applicationErrors.Store(0)
	m.nonceResyncs.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersCancelled.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.feedClients.Store(0)
}
