//go:build linux

package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/eventloop"
	"github.com/gophernest/sgopherd/internal/menu"
)

// TestIdleTimeoutSweepUsesFakeClock drives onTimer directly with a FakeClock
// so the idle-timeout sweep (spec §4.4.8) is exercised without the test
// actually waiting out cfg.Timeout.
func TestIdleTimeoutSweepUsesFakeClock(t *testing.T) {
	cfg := gopherd.TestConfig(t.TempDir(), nextTestPort())
	cfg.Timeout = time.Minute

	w := New(cfg, nullLogger{}, nil)

	clock := gopherd.NewFakeClock(time.Unix(1_700_000_000, 0))
	w.SetClock(clock)

	loop, err := eventloop.Create(16)
	require.NoError(t, err)
	defer loop.Close()
	w.loop = loop

	clientFDs, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	clientFD, peerFD := clientFDs[0], clientFDs[1]
	defer unix.Close(peerFD)

	s := newSession(clientFD, "test-peer", clock.Now())
	w.sessions[clientFD] = s
	w.clientCount = 1

	timerFDs, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	timerR, timerW := timerFDs[0], timerFDs[1]
	defer unix.Close(timerW)
	w.timerFD = timerR
	_, err = unix.Write(timerW, []byte{1})
	require.NoError(t, err)

	// Not yet idle long enough: the sweep leaves the session alone.
	clock.Advance(30 * time.Second)
	w.onTimer(w.timerFD, eventloop.EventReadable, nil, nil)
	require.Len(t, w.sessions, 1)

	_, err = unix.Write(timerW, []byte{1})
	require.NoError(t, err)

	// Now past cfg.Timeout: the sweep sends a timeout error and disconnects.
	clock.Advance(cfg.Timeout)
	w.onTimer(w.timerFD, eventloop.EventReadable, nil, nil)
	require.Empty(t, w.sessions)

	require.NoError(t, unix.SetNonblock(peerFD, false))
	buf := make([]byte, 4096)
	n, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	require.Equal(t, menu.ErrorMenuBody(gopherd.ErrCodeTimeout.GopherStatus()), buf[:n])
}
