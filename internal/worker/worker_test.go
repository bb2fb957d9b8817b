//go:build linux

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
)

type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

func TestNewWorkerDefaultsToNoOpObserver(t *testing.T) {
	cfg := gopherd.DefaultConfig()
	w := New(cfg, nullLogger{}, nil)
	require.IsType(t, noopObserver{}, w.observer)
	require.Equal(t, -1, w.listenFD)
	require.Equal(t, -1, w.signalFD)
	require.Equal(t, -1, w.timerFD)
	require.Equal(t, -1, w.contentDir)
	require.Empty(t, w.sessions)
}

func TestPeerAddrStringFormatsIPv4(t *testing.T) {
	sa := &unix.SockaddrInet4{Addr: [4]byte{203, 0, 113, 7}, Port: 12345}
	require.Equal(t, "203.0.113.7", peerAddrString(sa))
}

func TestPeerAddrStringFallsBackForUnknownFamily(t *testing.T) {
	require.Equal(t, "unknown", peerAddrString(&unix.SockaddrInet6{}))
}
