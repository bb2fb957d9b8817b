//go:build linux

// Package supervisor implements the multi-process front described in spec
// §4.5: it spawns cfg.WorkerCount worker processes, forwards SIGTERM to all
// of them, and exits once the last one has been reaped.
//
// The original implementation forks and, in the child branch, calls the
// worker entry point directly without an intervening exec. Go cannot do
// that safely: after a raw clone(2) without CLONE_VM, only the cloning OS
// thread survives into the child, so the Go scheduler, garbage collector,
// and every other goroutine are gone. Instead each child re-execs
// /proc/self/exe with GOPHERD_ROLE=worker and the resolved configuration
// passed via environment variables, landing back in a fresh, fully
// initialized Go runtime at cmd/gopherd's worker entrypoint.
package supervisor

import (
	"fmt"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/eventloop"
	"github.com/gophernest/sgopherd/internal/interfaces"
	"github.com/gophernest/sgopherd/internal/procfork"
)

// MaxWorkers bounds the number of worker processes a single supervisor will
// spawn, mirroring the original implementation's fixed worker table.
const MaxWorkers = 256

type workerProc struct {
	index int
	pid   int
	pidfd int
}

// Supervisor owns the worker process table and its own event loop. Like
// Worker, it must be driven from a single goroutine.
type Supervisor struct {
	cfg *gopherd.Config
	log interfaces.Logger

	loop     eventloop.Loop
	signalFD int
	workers  map[int]*workerProc // keyed by pidfd
	failed   bool
}

// New constructs a Supervisor. Call Run to spawn workers and start serving.
func New(cfg *gopherd.Config, log interfaces.Logger) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		log:      log,
		signalFD: -1,
		workers:  make(map[int]*workerProc),
	}
}

// Run spawns cfg.WorkerCount workers and blocks until every one of them has
// exited (spec §4.5).
func (sv *Supervisor) Run() error {
	if sv.cfg.WorkerCount > MaxWorkers {
		return gopherd.NewError("Supervisor.Run", gopherd.ErrCodeSetup,
			fmt.Sprintf("worker count %d exceeds maximum %d", sv.cfg.WorkerCount, MaxWorkers))
	}

	loop, err := eventloop.Create(sv.cfg.WorkerCount + 1)
	if err != nil {
		return gopherd.WrapError("Supervisor.Run/eventloop.Create", err)
	}
	sv.loop = loop

	if err := sv.setupSignalFD(); err != nil {
		return err
	}

	if err := redirectStdioToDevNull(); err != nil {
		return gopherd.WrapError("Supervisor.Run/redirectStdio", err)
	}

	spawned := 0
	for i := 0; i < sv.cfg.WorkerCount; i++ {
		if err := sv.spawnWorker(i); err != nil {
			sv.log.Warn("failed to spawn worker", "index", i, "err", err)
			continue
		}
		spawned++
	}

	if spawned == 0 {
		sv.failed = true
		sv.cleanup()
		return gopherd.NewError("Supervisor.Run", gopherd.ErrCodeSetup, "no workers could be started")
	}
	if spawned < sv.cfg.WorkerCount {
		sv.log.Warn("started fewer workers than requested", "requested", sv.cfg.WorkerCount, "started", spawned)
	} else {
		sv.log.Info("all workers spawned", "count", spawned, "port", sv.cfg.Port)
	}

	err = sv.loop.Enter(-1, nil)
	if err != nil {
		sv.failed = true
	}
	sv.cleanup()
	return err
}

// redirectStdioToDevNull matches the reference implementation: the
// supervisor has no interactive session once it starts forking workers, and
// workers inherit these descriptors across the re-exec. Stderr is left
// alone so logging keeps working.
func redirectStdioToDevNull() error {
	fd, err := unix.Open("/dev/null", unix.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	if err := unix.Dup2(fd, 0); err != nil {
		return err
	}
	return unix.Dup2(fd, 1)
}

func (sv *Supervisor) setupSignalFD() error {
	var set unix.Sigset_t
	set.Val[0] |= 1 << (uint(unix.SIGTERM) - 1)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return gopherd.WrapError("Supervisor.setupSignalFD/sigprocmask", err)
	}
	fd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return gopherd.WrapError("Supervisor.setupSignalFD", err)
	}
	sv.signalFD = fd
	return sv.loop.Add(fd, eventloop.EventReadable|eventloop.EventEdgeTriggered, sv.onSignal, nil, nil)
}

// spawnWorker re-execs the running binary as worker index i.
func (sv *Supervisor) spawnWorker(index int) error {
	selfPath := "/proc/self/exe"
	env := sv.workerEnv(index)
	params, err := prepareExec(selfPath, []string{selfPath}, env)
	if err != nil {
		return err
	}

	pid, pidfd, err := procfork.Fork()
	if err != nil {
		return fmt.Errorf("fork worker %d: %w", index, err)
	}

	if pid == 0 {
		// Child: only raw syscalls from here to exec.
		_ = execveRaw(params)
		unix.Exit(127)
	}

	w := &workerProc{index: index, pid: pid, pidfd: pidfd}
	sv.workers[pidfd] = w
	sv.log.Info("spawned worker", "index", index, "pid", pid)
	return sv.loop.Add(pidfd, eventloop.EventReadable, sv.onWorkerExit, w, nil)
}

func (sv *Supervisor) workerEnv(index int) []string {
	return []string{
		constants.EnvRole + "=" + constants.RoleWorker,
		constants.EnvDirectory + "=" + sv.cfg.Directory,
		constants.EnvHostname + "=" + sv.cfg.Hostname,
		constants.EnvIndexFile + "=" + sv.cfg.IndexFile,
		constants.EnvMaxClients + "=" + strconv.Itoa(sv.cfg.MaxClients),
		constants.EnvPort + "=" + strconv.Itoa(sv.cfg.Port),
		constants.EnvTimeout + "=" + sv.cfg.Timeout.String(),
		constants.EnvWorkerIndex + "=" + strconv.Itoa(index),
	}
}

// onSignal forwards SIGTERM to every live worker via its pidfd (spec
// §4.5).
func (sv *Supervisor) onSignal(fd int, _ eventloop.Event, _, _ any) {
	for {
		var info unix.SignalfdSiginfo
		buf := unsafe.Slice((*byte)(unsafe.Pointer(&info)), unsafe.Sizeof(info))
		n, err := unix.Read(sv.signalFD, buf)
		if n <= 0 || err != nil {
			return
		}
		if info.Signo != uint32(unix.SIGTERM) {
			continue
		}
		sv.log.Info("received shutdown signal, forwarding to workers")
		for _, w := range sv.workers {
			if err := pidfdSendSignal(w.pidfd, unix.SIGTERM); err != nil {
				sv.log.Warn("pidfd_send_signal failed", "pid", w.pid, "err", err)
			}
		}
	}
}

// onWorkerExit reaps a worker and exits the supervisor once none remain
// (spec §4.5).
func (sv *Supervisor) onWorkerExit(fd int, _ eventloop.Event, ud1, _ any) {
	w := ud1.(*workerProc)

	var info unix.Siginfo
	if err := unix.Waitid(unix.P_PIDFD, fd, &info, unix.WEXITED, nil); err != nil {
		sv.log.Warn("waitid failed", "pid", w.pid, "err", err)
	} else {
		sv.log.Info("worker exited", "pid", w.pid, "index", w.index)
	}

	_ = sv.loop.Remove(fd)
	_ = unix.Close(fd)
	delete(sv.workers, fd)

	if len(sv.workers) == 0 {
		sv.loop.Exit()
	}
}

// cleanup closes the supervisor's own descriptors. On a failure exit it
// first kills every worker still tracked, since there is no longer a
// supervisor alive to reap or signal them later (spec §4.5).
func (sv *Supervisor) cleanup() {
	if sv.failed {
		for pidfd, w := range sv.workers {
			if err := pidfdSendSignal(pidfd, unix.SIGKILL); err != nil {
				sv.log.Warn("pidfd_send_signal(KILL) failed", "pid", w.pid, "err", err)
			}
		}
	}
	if sv.signalFD >= 0 {
		_ = unix.Close(sv.signalFD)
	}
	if sv.loop != nil {
		_ = sv.loop.Close()
	}
}
