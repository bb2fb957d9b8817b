//go:build linux

package worker

import (
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/eventloop"
	"github.com/gophernest/sgopherd/internal/menu"
	"github.com/gophernest/sgopherd/internal/procfork"
)

// execFailureBody is the error menu written to the client socket if exec
// itself fails in the CGI child, mirroring server.c's
// `dprintf(client->socket, ERROR_FORMAT, ERROR_INTERNAL); exit(EXIT_FAILURE);`.
// Built once at init so the post-fork child never allocates.
var execFailureBody = menu.ErrorMenuBody(gopherd.ErrCodeInternal.GopherStatus())

// launchCGI execs fd (already confirmed regular and executable) as a CGI
// child per spec §4.4.4: the client socket replaces stdout, five fixed
// environment variables describe the request, and the process descriptor
// obtained from procfork.Fork is watched for the child's exit.
//
// Everything the child needs — the exec parameters and the chdir target —
// is resolved before forking, since the child branch of a raw clone(2) may
// not safely allocate through the Go runtime (see procfork.Fork).
func (w *Worker) launchCGI(s *session, fd int) {
	if err := clearCloExec(fd); err != nil {
		_ = unix.Close(fd)
		w.sendError(s, gopherd.ErrCodeInternal)
		w.disconnect(s)
		return
	}

	chdirFD := s.dirFD
	command := w.cfg.IndexFile
	if chdirFD < 0 {
		dir := path.Dir(s.normalizedPath)
		df, err := unix.Openat(w.contentDir, dir, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		if err != nil {
			_ = unix.Close(fd)
			w.sendError(s, gopherd.ErrCodeInternal)
			w.disconnect(s)
			return
		}
		if err := clearCloExec(df); err != nil {
			_ = unix.Close(df)
			_ = unix.Close(fd)
			w.sendError(s, gopherd.ErrCodeInternal)
			w.disconnect(s)
			return
		}
		chdirFD = df
		command = path.Base(s.normalizedPath)
	}

	env := buildCGIEnv(s, w.cfg.Hostname, w.cfg.Port)
	params, err := prepareCGIExec(fd, []string{command}, env)
	var emptySigset unix.Sigset_t
	if err != nil {
		_ = unix.Close(fd)
		if chdirFD != s.dirFD {
			_ = unix.Close(chdirFD)
		}
		w.sendError(s, gopherd.ErrCodeInternal)
		w.disconnect(s)
		return
	}

	pid, pidfd, err := procfork.Fork()
	if err != nil {
		_ = unix.Close(fd)
		if chdirFD != s.dirFD {
			_ = unix.Close(chdirFD)
		}
		w.log.Warn("fork failed", "err", err)
		w.sendError(s, gopherd.ErrCodeInternal)
		w.disconnect(s)
		return
	}

	if pid == 0 {
		// Child: only raw syscalls from here on, ending in exec or _exit.
		_ = unix.PthreadSigmask(unix.SIG_SETMASK, &emptySigset, nil)
		_ = rawDup2(s.fd, 1)
		_ = rawFchdir(chdirFD)
		if execveatByFD(params) != nil {
			rawWrite(1, execFailureBody)
		}
		unix.Exit(127)
	}

	_ = unix.Close(fd)
	if chdirFD != s.dirFD {
		_ = unix.Close(chdirFD)
	}
	s.pidfd = pidfd
	s.state = stateCGIRunning
	w.observer.ObserveCGILaunched()

	if err := w.loop.Add(pidfd, eventloop.EventReadable, w.onCGIExit, s, nil); err != nil {
		_ = pidfdSendSignal(pidfd, unix.SIGKILL)
	}
	if err := w.loop.ModEvents(s.fd, eventloop.EventError|eventloop.EventHangup|eventloop.EventEdgeTriggered); err != nil {
		w.disconnect(s)
	}
}

// onCGIExit reaps the CGI child referenced by s.pidfd and finishes the
// connection (spec §4.4.7).
func (w *Worker) onCGIExit(fd int, _ eventloop.Event, ud1, _ any) {
	s := ud1.(*session)
	var info unix.Siginfo
	_ = unix.Waitid(unix.P_PIDFD, fd, &info, unix.WEXITED, nil)
	w.disconnect(s)
}

func buildCGIEnv(s *session, hostname string, port int) []string {
	truncate := func(v string) string {
		if len(v) > constants.MaxEnvValueSize {
			return v[:constants.MaxEnvValueSize]
		}
		return v
	}
	return []string{
		constants.EnvScriptName + "=" + truncate(strings.TrimPrefix(s.normalizedPath, ".")),
		constants.EnvQueryString + "=" + truncate(s.query),
		constants.EnvServerName + "=" + truncate(hostname),
		constants.EnvServerPort + "=" + truncate(strconv.Itoa(port)),
		constants.EnvRemoteAddr + "=" + truncate(s.peerAddr),
	}
}
