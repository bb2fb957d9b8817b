package gopherd

import (
	"sync/atomic"
	"time"
)

// Metrics tracks per-worker operational statistics. Counters are updated
// from a single worker's event-loop thread, so plain atomics (rather than a
// mutex) are enough to make Snapshot safe to call concurrently from a
// different goroutine (e.g. a debug endpoint).
type Metrics struct {
	ConnectionsAccepted atomic.Uint64
	ConnectionsRejected atomic.Uint64 // refused because maxclients was reached

	StaticFilesServed atomic.Uint64
	StaticBytesSent   atomic.Uint64

	CGILaunched atomic.Uint64
	CGIKilled   atomic.Uint64 // killed by the idle-timeout sweep

	Timeouts atomic.Uint64

	ErrorsBadRequest  atomic.Uint64
	ErrorsForbidden   atomic.Uint64
	ErrorsNotFound    atomic.Uint64
	ErrorsUnavailable atomic.Uint64
	ErrorsInternal    atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano, zero while running
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) RecordAccept(accepted bool) {
	if accepted {
		m.ConnectionsAccepted.Add(1)
	} else {
		m.ConnectionsRejected.Add(1)
	}
}

func (m *Metrics) RecordStaticServed(bytes uint64) {
	m.StaticFilesServed.Add(1)
	m.StaticBytesSent.Add(bytes)
}

func (m *Metrics) RecordCGILaunched() { m.CGILaunched.Add(1) }
func (m *Metrics) RecordCGIKilled()   { m.CGIKilled.Add(1) }
func (m *Metrics) RecordTimeout()     { m.Timeouts.Add(1) }

// RecordError increments the counter matching code. Codes with no matching
// counter (e.g. ErrCodeSetup, which never reaches a client) are ignored.
func (m *Metrics) RecordError(code ErrorCode) {
	switch code {
	case ErrCodeBadRequest:
		m.ErrorsBadRequest.Add(1)
	case ErrCodeForbidden:
		m.ErrorsForbidden.Add(1)
	case ErrCodeNotFound:
		m.ErrorsNotFound.Add(1)
	case ErrCodeUnavailable:
		m.ErrorsUnavailable.Add(1)
	case ErrCodeInternal:
		m.ErrorsInternal.Add(1)
	}
}

// Stop marks the worker as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics plus derived rates.
type MetricsSnapshot struct {
	ConnectionsAccepted uint64
	ConnectionsRejected uint64
	StaticFilesServed   uint64
	StaticBytesSent     uint64
	CGILaunched         uint64
	CGIKilled           uint64
	Timeouts            uint64
	TotalErrors         uint64
	UptimeNs            uint64
	AcceptsPerSecond    float64
	BytesPerSecond      float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsRejected: m.ConnectionsRejected.Load(),
		StaticFilesServed:   m.StaticFilesServed.Load(),
		StaticBytesSent:     m.StaticBytesSent.Load(),
		CGILaunched:         m.CGILaunched.Load(),
		CGIKilled:           m.CGIKilled.Load(),
		Timeouts:            m.Timeouts.Load(),
	}
	snap.TotalErrors = m.ErrorsBadRequest.Load() + m.ErrorsForbidden.Load() +
		m.ErrorsNotFound.Load() + m.ErrorsUnavailable.Load() + m.ErrorsInternal.Load()

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.AcceptsPerSecond = float64(snap.ConnectionsAccepted) / uptimeSeconds
		snap.BytesPerSecond = float64(snap.StaticBytesSent) / uptimeSeconds
	}

	return snap
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.ConnectionsAccepted.Store(0)
	m.ConnectionsRejected.Store(0)
	m.StaticFilesServed.Store(0)
	m.StaticBytesSent.Store(0)
	m.CGILaunched.Store(0)
	m.CGIKilled.Store(0)
	m.Timeouts.Store(0)
	m.ErrorsBadRequest.Store(0)
	m.ErrorsForbidden.Store(0)
	m.ErrorsNotFound.Store(0)
	m.ErrorsUnavailable.Store(0)
	m.ErrorsInternal.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, independent of the
// internal/interfaces.Observer used inside internal/worker so that the root
// package has no dependency on internal packages.
type Observer interface {
	ObserveAccept(accepted bool)
	ObserveStaticServed(bytes uint64)
	ObserveCGILaunched()
	ObserveCGIKilled()
	ObserveTimeout()
	ObserveError(code ErrorCode)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAccept(bool)          {}
func (NoOpObserver) ObserveStaticServed(uint64)  {}
func (NoOpObserver) ObserveCGILaunched()         {}
func (NoOpObserver) ObserveCGIKilled()           {}
func (NoOpObserver) ObserveTimeout()             {}
func (NoOpObserver) ObserveError(ErrorCode)      {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAccept(accepted bool)    { o.metrics.RecordAccept(accepted) }
func (o *MetricsObserver) ObserveStaticServed(b uint64)   { o.metrics.RecordStaticServed(b) }
func (o *MetricsObserver) ObserveCGILaunched()            { o.metrics.RecordCGILaunched() }
func (o *MetricsObserver) ObserveCGIKilled()              { o.metrics.RecordCGIKilled() }
func (o *MetricsObserver) ObserveTimeout()                { o.metrics.RecordTimeout() }
func (o *MetricsObserver) ObserveError(code ErrorCode)    { o.metrics.RecordError(code) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
