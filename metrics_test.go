package gopherd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()

	require.Zero(t, snap.ConnectionsAccepted)
	require.Zero(t, snap.TotalErrors)
}

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordAccept(true)
	m.RecordAccept(true)
	m.RecordAccept(false)
	m.RecordStaticServed(1024)
	m.RecordCGILaunched()
	m.RecordCGIKilled()
	m.RecordTimeout()
	m.RecordError(ErrCodeNotFound)
	m.RecordError(ErrCodeForbidden)

	snap := m.Snapshot()
	require.EqualValues(t, 2, snap.ConnectionsAccepted)
	require.EqualValues(t, 1, snap.ConnectionsRejected)
	require.EqualValues(t, 1, snap.StaticFilesServed)
	require.EqualValues(t, 1024, snap.StaticBytesSent)
	require.EqualValues(t, 1, snap.CGILaunched)
	require.EqualValues(t, 1, snap.CGIKilled)
	require.EqualValues(t, 1, snap.Timeouts)
	require.EqualValues(t, 2, snap.TotalErrors)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordAccept(true)
	m.RecordError(ErrCodeInternal)

	m.Reset()

	snap := m.Snapshot()
	require.Zero(t, snap.ConnectionsAccepted)
	require.Zero(t, snap.TotalErrors)
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	var _ Observer = obs
	obs.ObserveAccept(true)
	obs.ObserveStaticServed(512)
	obs.ObserveCGILaunched()
	obs.ObserveCGIKilled()
	obs.ObserveTimeout()
	obs.ObserveError(ErrCodeBadRequest)

	snap := m.Snapshot()
	require.EqualValues(t, 1, snap.ConnectionsAccepted)
	require.EqualValues(t, 512, snap.StaticBytesSent)
	require.EqualValues(t, 1, snap.CGILaunched)
	require.EqualValues(t, 1, snap.CGIKilled)
	require.EqualValues(t, 1, snap.Timeouts)
	require.EqualValues(t, 1, snap.TotalErrors)
}

func TestNoOpObserverSatisfiesInterface(t *testing.T) {
	var obs Observer = NoOpObserver{}
	obs.ObserveAccept(true)
	obs.ObserveStaticServed(0)
	obs.ObserveCGILaunched()
	obs.ObserveCGIKilled()
	obs.ObserveTimeout()
	obs.ObserveError(ErrCodeInternal)
}
