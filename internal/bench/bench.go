// Package bench implements the Gopher load-testing client described in
// spec §4.7: repeatedly issue one request over a fresh TCP connection and
// tally successes, timeouts, and size mismatches.
//
// The original implementation runs one worker per forked process,
// coordinating through anonymous shared memory. Go's goroutines and
// atomic counters give the same concurrent-workers-sharing-one-tally shape
// without the shared-memory plumbing, so each worker here is a goroutine
// instead of a process.
package bench

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gophernest/sgopherd/internal/interfaces"
)

// Config describes one benchmark run.
type Config struct {
	Address  string
	Port     int
	Request  string
	Size     int // expected response size in bytes; 0 disables the check
	Timeout  time.Duration
	Duration time.Duration
	Workers  int
	Logger   interfaces.Logger // optional; nil disables per-worker warnings
}

// Results accumulates counts across all worker goroutines. All fields are
// updated with atomic operations so a Results value may be read safely
// while workers are still running.
type Results struct {
	Total      atomic.Int64
	Successful atomic.Int64
	Timeout    atomic.Int64
	Mismatch   atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Results suitable for
// printing or further arithmetic.
type Snapshot struct {
	Total      int64
	Successful int64
	Timeout    int64
	Mismatch   int64
}

func (r *Results) Snapshot() Snapshot {
	return Snapshot{
		Total:      r.Total.Load(),
		Successful: r.Successful.Load(),
		Timeout:    r.Timeout.Load(),
		Mismatch:   r.Mismatch.Load(),
	}
}

// Run spawns cfg.Workers goroutines, each hammering the target address for
// cfg.Duration, and returns the combined Results.
func Run(cfg Config) *Results {
	results := &Results{}
	deadline := time.Now().Add(cfg.Duration)

	done := make(chan struct{})
	for i := 0; i < cfg.Workers; i++ {
		go func(id int) {
			runWorker(id, cfg, deadline, results)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < cfg.Workers; i++ {
		<-done
	}
	return results
}

func runWorker(id int, cfg Config, deadline time.Time, results *Results) {
	addr := net.JoinHostPort(cfg.Address, fmt.Sprintf("%d", cfg.Port))
	request := []byte(cfg.Request + "\r\n")
	buf := make([]byte, 1024*1024)

	warnedTimeout := false
	warnedMismatch := false

	for time.Now().Before(deadline) {
		results.Total.Add(1)

		received, err := attempt(addr, request, buf, cfg.Timeout)
		switch {
		case errors.Is(err, errAttemptTimeout):
			if !warnedTimeout && cfg.Logger != nil {
				cfg.Logger.Warn("worker timed out", "worker", id)
				warnedTimeout = true
			}
			results.Timeout.Add(1)
		case err != nil:
			return
		case cfg.Size > 0 && received != cfg.Size:
			if !warnedMismatch && cfg.Logger != nil {
				cfg.Logger.Warn("worker size mismatch", "worker", id, "expected", cfg.Size, "got", received)
				warnedMismatch = true
			}
			results.Mismatch.Add(1)
		default:
			results.Successful.Add(1)
		}
	}
}

var errAttemptTimeout = errors.New("attempt timed out")

// attempt performs one connect/write/read-to-EOF cycle and returns the
// number of bytes received.
func attempt(addr string, request, buf []byte, timeout time.Duration) (int, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		if isTimeout(err) {
			return 0, errAttemptTimeout
		}
		return 0, err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(request); err != nil {
		if isTimeout(err) {
			return 0, errAttemptTimeout
		}
		return 0, err
	}

	received := 0
	for {
		n, err := conn.Read(buf)
		received += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return received, nil
			}
			if isTimeout(err) {
				return received, errAttemptTimeout
			}
			return received, err
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
