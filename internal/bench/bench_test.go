package bench

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEchoServer returns a TCP listener that writes a fixed response to
// every connection and then closes it, simulating a minimal gopher server.
func startEchoServer(t *testing.T, response []byte) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 512)
				_, _ = conn.Read(buf)
				_, _ = conn.Write(response)
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestRunCountsSuccessfulRequests(t *testing.T) {
	response := []byte("1Example\tfoo\thost\t70\r\n.\r\n")
	host, port := startEchoServer(t, response)

	cfg := Config{
		Address:  host,
		Port:     port,
		Request:  "/",
		Size:     len(response),
		Timeout:  time.Second,
		Duration: 200 * time.Millisecond,
		Workers:  2,
	}
	results := Run(cfg)
	snap := results.Snapshot()

	require.Greater(t, snap.Total, int64(0))
	require.Equal(t, snap.Total, snap.Successful+snap.Mismatch+snap.Timeout)
	require.Zero(t, snap.Mismatch)
}

func TestRunDetectsSizeMismatch(t *testing.T) {
	response := []byte("short")
	host, port := startEchoServer(t, response)

	cfg := Config{
		Address:  host,
		Port:     port,
		Request:  "/",
		Size:     9999,
		Timeout:  time.Second,
		Duration: 100 * time.Millisecond,
		Workers:  1,
	}
	results := Run(cfg)
	snap := results.Snapshot()

	require.Greater(t, snap.Mismatch, int64(0))
	require.Zero(t, snap.Successful)
}

func TestSnapshotReflectsAtomicCounters(t *testing.T) {
	results := &Results{}
	results.Total.Add(5)
	results.Successful.Add(3)
	results.Timeout.Add(1)
	results.Mismatch.Add(1)

	snap := results.Snapshot()
	require.Equal(t, Snapshot{Total: 5, Successful: 3, Timeout: 1, Mismatch: 1}, snap)
}
