package gopherd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TestObserver is a public Observer implementation for exercising code that
// takes an Observer, without pulling in atomic counters or a real Metrics
// instance. It records every call for inspection by the caller's test.
type TestObserver struct {
	mu sync.Mutex

	acceptsAllowed  int
	acceptsRejected int
	staticServed    int
	staticBytes     uint64
	cgiLaunched     int
	cgiKilled       int
	timeouts        int
	errors          []ErrorCode
}

// NewTestObserver returns a ready-to-use TestObserver.
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

func (o *TestObserver) ObserveAccept(accepted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if accepted {
		o.acceptsAllowed++
	} else {
		o.acceptsRejected++
	}
}

func (o *TestObserver) ObserveStaticServed(bytes uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staticServed++
	o.staticBytes += bytes
}

func (o *TestObserver) ObserveCGILaunched() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cgiLaunched++
}

func (o *TestObserver) ObserveCGIKilled() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cgiKilled++
}

func (o *TestObserver) ObserveTimeout() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeouts++
}

func (o *TestObserver) ObserveError(code ErrorCode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, code)
}

// Counts is a point-in-time snapshot of everything a TestObserver recorded.
type Counts struct {
	AcceptsAllowed  int
	AcceptsRejected int
	StaticServed    int
	StaticBytes     uint64
	CGILaunched     int
	CGIKilled       int
	Timeouts        int
	Errors          []ErrorCode
}

// Snapshot copies the observer's current counts.
func (o *TestObserver) Snapshot() Counts {
	o.mu.Lock()
	defer o.mu.Unlock()
	errs := make([]ErrorCode, len(o.errors))
	copy(errs, o.errors)
	return Counts{
		AcceptsAllowed:  o.acceptsAllowed,
		AcceptsRejected: o.acceptsRejected,
		StaticServed:    o.staticServed,
		StaticBytes:     o.staticBytes,
		CGILaunched:     o.cgiLaunched,
		CGIKilled:       o.cgiKilled,
		Timeouts:        o.timeouts,
		Errors:          errs,
	}
}

// Compile-time interface check.
var _ Observer = (*TestObserver)(nil)

// TestConfig returns a Config pointed at dir, suitable for tests that stand
// up a worker against a temporary directory without depending on the
// documented CLI defaults' port or client ceiling.
func TestConfig(dir string, port int) *Config {
	cfg := DefaultConfig()
	cfg.Directory = dir
	cfg.Port = port
	cfg.MaxClients = 16
	return cfg
}

// FakeClock is a settable time source for driving a worker's idle-timeout
// sweep deterministically, without a test actually sleeping for the
// configured timeout.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// DialGopher sends a selector and optional query to a gopher server
// listening at addr and returns the full response body. query is appended
// after a tab per RFC 1436 §3.2's search-query request form; pass "" for a
// plain selector request.
func DialGopher(addr, selector, query string) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	request := selector
	if query != "" {
		request = fmt.Sprintf("%s\t%s", selector, query)
	}
	if _, err := io.WriteString(conn, request+"\r\n"); err != nil {
		return nil, err
	}

	return io.ReadAll(bufio.NewReader(conn))
}
