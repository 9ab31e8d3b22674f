package infra

import (
	"sync/atomic"
	"time"

	"iqfeed_go/internal/domain"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	bytesRead      atomic.Uint64
	framesRead     atomic.Uint64
	trades         atomic.Uint64
	timestamps     atomic.Uint64
	serverMessages atomic.Uint64
	unknown        atomic.Uint64
	decodeErrors   atomic.Uint64
	errorsTotal    atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordBytesRead records n bytes pulled off a feed socket.
func (m *Metrics) RecordBytesRead(n int) {
	m.bytesRead.Add(uint64(n))
}

// RecordFrame records one complete frame handed downstream.
func (m *Metrics) RecordFrame() {
	m.framesRead.Add(1)
}

// RecordMessage records a decoded message by kind.
func (m *Metrics) RecordMessage(kind domain.Kind) {
	switch kind {
	case domain.KindTrade:
		m.trades.Add(1)
	case domain.KindTimestamp:
		m.timestamps.Add(1)
	case domain.KindServer:
		m.serverMessages.Add(1)
	default:
		m.unknown.Add(1)
	}
}

// RecordDecodeError records a frame that failed to decode.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	BytesRead         uint64
	FramesRead        uint64
	Trades            uint64
	Timestamps        uint64
	ServerMessages    uint64
	Unknown           uint64
	DecodeErrors      uint64
	ErrorsTotal       uint64
	ActiveConnections int32
	Timestamp         time.Time
}

// Decoded returns the number of frames that decoded to any message.
func (s MetricsSnapshot) Decoded() uint64 {
	return s.Trades + s.Timestamps + s.ServerMessages + s.Unknown
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesRead:         m.bytesRead.Load(),
		FramesRead:        m.framesRead.Load(),
		Trades:            m.trades.Load(),
		Timestamps:        m.timestamps.Load(),
		ServerMessages:    m.serverMessages.Load(),
		Unknown:           m.unknown.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.bytesRead.Store(0)
	m.framesRead.Store(0)
	m.trades.Store(0)
	m.timestamps.Store(0)
	m.serverMessages.Store(0)
	m.unknown.Store(0)
	m.decodeErrors.Store(0)
	m.errorsTotal.Store(0)
	m.activeConnections.Store(0)
}
