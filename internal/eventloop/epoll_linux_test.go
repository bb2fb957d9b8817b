//go:build linux

package eventloop

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func unixEpollEventFor(fd int) unix.EpollEvent {
	return unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
}

func TestAddAndDispatchReadable(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	loop, err := Create(8)
	require.NoError(t, err)
	defer loop.Close()

	fired := false
	require.NoError(t, loop.Add(int(r.Fd()), EventReadable, func(fd int, ev Event, ud1, ud2 any) {
		fired = true
		require.NotZero(t, ev&EventReadable)
	}, nil, nil))

	_, err = w.WriteString("x")
	require.NoError(t, err)

	n, err := loop.Once(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, fired)
}

func TestAddDuplicateFails(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	loop, err := Create(8)
	require.NoError(t, err)
	defer loop.Close()

	noop := func(int, Event, any, any) {}
	require.NoError(t, loop.Add(int(r.Fd()), EventReadable, noop, nil, nil))
	require.Error(t, loop.Add(int(r.Fd()), EventReadable, noop, nil, nil))
}

func TestRemoveDuringDispatchIsSafe(t *testing.T) {
	// epoll_wait does not guarantee an ordering of simultaneously-ready
	// descriptors, so this test drives dispatchOnce directly against a
	// synthetic batch to deterministically exercise the case where fd A's
	// callback removes fd B, and B's event appears later in the same
	// already-captured batch.
	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	defer r1.Close()
	defer w1.Close()
	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	defer r2.Close()
	defer w2.Close()

	loopIface, err := Create(8)
	require.NoError(t, err)
	defer loopIface.Close()
	loop := loopIface.(*epollLoop)

	var secondFired bool
	require.NoError(t, loop.Add(int(r2.Fd()), EventReadable, func(fd int, ev Event, ud1, ud2 any) {
		secondFired = true
	}, nil, nil))
	require.NoError(t, loop.Add(int(r1.Fd()), EventReadable, func(fd int, ev Event, ud1, ud2 any) {
		require.NoError(t, loop.Remove(int(r2.Fd())))
	}, nil, nil))

	_, _ = w1.WriteString("x")
	_, _ = w2.WriteString("x")

	loop.events[0] = unixEpollEventFor(int(r1.Fd()))
	loop.events[1] = unixEpollEventFor(int(r2.Fd()))
	loop.dispatchOnce(2)

	require.False(t, secondFired)
}

func TestModEvents(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	loop, err := Create(8)
	require.NoError(t, err)
	defer loop.Close()

	require.NoError(t, loop.Add(int(r.Fd()), EventReadable, func(int, Event, any, any) {}, nil, nil))
	require.NoError(t, loop.ModEvents(int(r.Fd()), EventWritable))
	require.Error(t, loop.ModEvents(99999, EventWritable))
}
