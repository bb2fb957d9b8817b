//go:build linux

// Package worker implements the single-threaded, epoll-driven Gopher server
// described in spec §4.4: one listener, a per-client state machine, static
// file transfer via sendfile, and CGI-style execution of executable content.
package worker

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/eventloop"
	"github.com/gophernest/sgopherd/internal/interfaces"
	"github.com/gophernest/sgopherd/internal/menu"
)

// Worker owns one listening socket and drives its own event loop. Per
// spec §5, a Worker must be driven from a single goroutine for its entire
// lifetime.
type Worker struct {
	cfg      *gopherd.Config
	log      interfaces.Logger
	observer interfaces.Observer
	clock    interfaces.Clock

	loop       eventloop.Loop
	listenFD   int
	signalFD   int
	timerFD    int
	contentDir int // O_PATH descriptor for cfg.Directory

	sessions     map[int]*session
	clientCount  int
}

// New constructs a Worker. Call Run to start serving.
func New(cfg *gopherd.Config, log interfaces.Logger, observer interfaces.Observer) *Worker {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Worker{
		cfg:        cfg,
		log:        log,
		observer:   observer,
		clock:      realClock{},
		listenFD:   -1,
		signalFD:   -1,
		timerFD:    -1,
		contentDir: -1,
		sessions:   make(map[int]*session),
	}
}

// SetClock overrides the worker's time source. Intended for tests driving
// the idle-timeout sweep deterministically with a FakeClock; production
// callers never need it since New already installs a realClock.
func (w *Worker) SetClock(c interfaces.Clock) {
	if c != nil {
		w.clock = c
	}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type noopObserver struct{}

func (noopObserver) ObserveAccept(bool)         {}
func (noopObserver) ObserveStaticServed(uint64) {}
func (noopObserver) ObserveCGILaunched()        {}
func (noopObserver) ObserveCGIKilled()          {}
func (noopObserver) ObserveTimeout()            {}
func (noopObserver) ObserveError(string)        {}

// MetricsAdapter adapts a gopherd.Observer (whose ObserveError takes a
// gopherd.ErrorCode) to interfaces.Observer (whose ObserveError takes the
// string a worker already has on hand), so cmd/gopherd can hand a
// *gopherd.MetricsObserver straight to New without the root package
// depending on internal/interfaces.
type MetricsAdapter struct {
	Observer gopherd.Observer
}

func (a MetricsAdapter) ObserveAccept(accepted bool)  { a.Observer.ObserveAccept(accepted) }
func (a MetricsAdapter) ObserveStaticServed(b uint64) { a.Observer.ObserveStaticServed(b) }
func (a MetricsAdapter) ObserveCGILaunched()          { a.Observer.ObserveCGILaunched() }
func (a MetricsAdapter) ObserveCGIKilled()            { a.Observer.ObserveCGIKilled() }
func (a MetricsAdapter) ObserveTimeout()              { a.Observer.ObserveTimeout() }
func (a MetricsAdapter) ObserveError(code string)     { a.Observer.ObserveError(gopherd.ErrorCode(code)) }

var _ interfaces.Observer = MetricsAdapter{}

// Run performs startup (spec §4.4.1) and blocks serving until the event
// loop exits (SIGTERM or a fatal setup error).
func (w *Worker) Run() error {
	// SIGCHLD/SIGPIPE are ignored so an exited CGI child or a client that
	// resets mid-write never terminates the worker; children are reaped
	// explicitly via their pidfd.
	signal.Ignore(syscall.SIGCHLD, syscall.SIGPIPE)

	if err := setParentDeathSignal(unix.SIGTERM); err != nil {
		w.log.Warn("prctl(PR_SET_PDEATHSIG) failed", "err", err)
	}

	if err := raiseFDLimit(w.cfg.FDBudget()); err != nil {
		return gopherd.WrapError("Worker.Run/raiseFDLimit", err)
	}

	contentDir, err := unix.Open(w.cfg.Directory, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return gopherd.WrapError("Worker.Run/openContentRoot", err)
	}
	var rootSt unix.Stat_t
	if err := unix.Fstat(contentDir, &rootSt); err != nil {
		_ = unix.Close(contentDir)
		return gopherd.WrapError("Worker.Run/statContentRoot", err)
	}
	if rootSt.Mode&unix.S_IROTH == 0 {
		_ = unix.Close(contentDir)
		return gopherd.NewError("Worker.Run", gopherd.ErrCodeSetup, "content directory is not world-readable")
	}
	if rootSt.Mode&unix.S_IXOTH == 0 {
		_ = unix.Close(contentDir)
		return gopherd.NewError("Worker.Run", gopherd.ErrCodeSetup, "content directory is not world-executable")
	}
	w.contentDir = contentDir

	loop, err := eventloop.Create(128)
	if err != nil {
		return gopherd.WrapError("Worker.Run/eventloop.Create", err)
	}
	w.loop = loop

	if err := w.setupSignalFD(); err != nil {
		return err
	}
	if err := w.setupTimerFD(); err != nil {
		return err
	}
	if err := w.setupListener(); err != nil {
		return err
	}

	w.log.Info("worker started", "pid", os.Getpid(), "port", w.cfg.Port, "directory", w.cfg.Directory)

	err = w.loop.Enter(-1, nil)
	w.cleanup()
	return err
}

func (w *Worker) setupSignalFD() error {
	var set unix.Sigset_t
	set.Val[0] |= 1 << (uint(unix.SIGTERM) - 1)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return gopherd.WrapError("Worker.setupSignalFD/sigprocmask", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return gopherd.WrapError("Worker.setupSignalFD", err)
	}
	w.signalFD = fd
	return w.loop.Add(fd, eventloop.EventReadable, w.onSignal, nil, nil)
}

func (w *Worker) setupTimerFD() error {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return gopherd.WrapError("Worker.setupTimerFD", err)
	}
	w.timerFD = fd
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(w.cfg.Timeout.Nanoseconds()),
		Value:    unix.NsecToTimespec(w.cfg.Timeout.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		return gopherd.WrapError("Worker.setupTimerFD/settime", err)
	}
	return w.loop.Add(fd, eventloop.EventReadable, w.onTimer, nil, nil)
}

func (w *Worker) setupListener() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return gopherd.WrapError("Worker.setupListener/socket", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)

	addr := &unix.SockaddrInet4{Port: w.cfg.Port}
	if err := unix.Bind(fd, addr); err != nil {
		return gopherd.WrapError("Worker.setupListener/bind", err)
	}
	if err := unix.Listen(fd, constants.ListenerBacklog); err != nil {
		return gopherd.WrapError("Worker.setupListener/listen", err)
	}
	w.listenFD = fd
	return w.loop.Add(fd, eventloop.EventReadable|eventloop.EventEdgeTriggered, w.onListenerReadable, nil, nil)
}

// onListenerReadable accepts until it would block (spec §4.4.2).
func (w *Worker) onListenerReadable(fd int, events eventloop.Event, _, _ any) {
	for {
		connFD, sa, err := unix.Accept4(w.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			w.log.Warn("accept failed", "err", err)
			return
		}

		if w.clientCount >= w.cfg.MaxClients {
			w.observer.ObserveAccept(false)
			_, _ = unix.Write(connFD, menu.ErrorMenuBody(gopherd.ErrCodeUnavailable.GopherStatus()))
			_ = unix.Close(connFD)
			continue
		}

		peer := peerAddrString(sa)
		s := newSession(connFD, peer, w.clock.Now())
		if err := w.loop.Add(connFD, eventloop.EventReadable|eventloop.EventEdgeTriggered, w.onClientEvent, s, nil); err != nil {
			_ = unix.Close(connFD)
			continue
		}
		w.sessions[connFD] = s
		w.clientCount++
		w.observer.ObserveAccept(true)
	}
}

func peerAddrString(sa unix.Sockaddr) string {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%d.%d.%d.%d", v4.Addr[0], v4.Addr[1], v4.Addr[2], v4.Addr[3])
	}
	return "unknown"
}

// onClientEvent dispatches by current session state and reported readiness.
func (w *Worker) onClientEvent(fd int, events eventloop.Event, ud1, _ any) {
	s := ud1.(*session)
	if events&(eventloop.EventError|eventloop.EventHangup) != 0 {
		w.onClientErrorOrHangup(s)
		return
	}
	switch s.state {
	case stateReadingRequest:
		if events&eventloop.EventReadable != 0 {
			w.onClientReadable(s)
		}
	case stateSendingFile:
		if events&eventloop.EventWritable != 0 {
			w.onClientWritable(s)
		}
	case stateCGIRunning:
		// interest is narrowed to error/hangup only; nothing to do here.
	}
}
