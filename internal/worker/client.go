//go:build linux

package worker

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gophernest/sgopherd"
	"github.com/gophernest/sgopherd/internal/eventloop"
	"github.com/gophernest/sgopherd/internal/menu"
)

func (w *Worker) sendError(s *session, code gopherd.ErrorCode) {
	w.observer.ObserveError(string(code))
	status := code.GopherStatus()
	if status != "" {
		_, _ = unix.Write(s.fd, menu.ErrorMenuBody(status))
	}
}

// onClientReadable implements spec §4.4.3.
func (w *Worker) onClientReadable(s *session) {
	for {
		if s.bufLen >= len(s.buf) {
			break
		}
		n, err := unix.Read(s.fd, s.buf[s.bufLen:])
		if n > 0 {
			s.bufLen += n
			s.lastActivity = w.clock.Now()
			continue
		}
		if n == 0 {
			w.disconnect(s)
			return
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		if err == unix.ECONNRESET {
			w.disconnect(s)
			return
		}
		w.log.Warn("client read failed", "peer", s.peerAddr, "err", err)
		w.sendError(s, gopherd.ErrCodeInternal)
		w.disconnect(s)
		return
	}

	selector, query, ok := parseRequest(s.buf[:s.bufLen])
	if !ok {
		if s.bufLen >= len(s.buf) {
			w.sendError(s, gopherd.ErrCodeBadRequest)
			w.disconnect(s)
		}
		return
	}

	if !selectorIsSafe(selector) {
		w.sendError(s, gopherd.ErrCodeForbidden)
		w.disconnect(s)
		return
	}

	s.query = query
	s.normalizedPath = normalizeSelector(selector)
	w.openSelector(s)
}

// openSelector resolves s.normalizedPath against the content root and
// transitions the session to SendingFile or CGIRunning (spec §4.4.3).
func (w *Worker) openSelector(s *session) {
	fd, err := unix.Openat(w.contentDir, s.normalizedPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		switch err {
		case unix.ENOENT:
			w.sendError(s, gopherd.ErrCodeNotFound)
		case unix.EACCES:
			w.sendError(s, gopherd.ErrCodeForbidden)
		default:
			w.log.Warn("open failed", "path", s.normalizedPath, "err", err)
			w.sendError(s, gopherd.ErrCodeInternal)
		}
		w.disconnect(s)
		return
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		w.sendError(s, gopherd.ErrCodeInternal)
		w.disconnect(s)
		return
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		s.dirFD = fd
		idxFD, err := unix.Openat(fd, w.cfg.IndexFile, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			switch err {
			case unix.ENOENT:
				w.sendError(s, gopherd.ErrCodeNotFound)
			case unix.EACCES:
				w.sendError(s, gopherd.ErrCodeForbidden)
			default:
				w.sendError(s, gopherd.ErrCodeInternal)
			}
			w.disconnect(s)
			return
		}
		var idxSt unix.Stat_t
		if err := unix.Fstat(idxFD, &idxSt); err != nil || idxSt.Mode&unix.S_IFMT != unix.S_IFREG {
			_ = unix.Close(idxFD)
			w.sendError(s, gopherd.ErrCodeForbidden)
			w.disconnect(s)
			return
		}
		s.normalizedPath += "/"
		w.dispatchRegularFile(s, idxFD, idxSt)
	case unix.S_IFREG:
		w.dispatchRegularFile(s, fd, st)
	default:
		_ = unix.Close(fd)
		w.sendError(s, gopherd.ErrCodeForbidden)
		w.disconnect(s)
	}
}

func (w *Worker) dispatchRegularFile(s *session, fd int, st unix.Stat_t) {
	if st.Mode&unix.S_IXOTH != 0 {
		w.launchCGI(s, fd)
		return
	}
	s.responseFD = fd
	s.responseSize = st.Size
	s.state = stateSendingFile
	if err := w.loop.ModEvents(s.fd, eventloop.EventWritable|eventloop.EventEdgeTriggered); err != nil {
		w.disconnect(s)
	}
}

// onClientWritable implements spec §4.4.5 via sendfile(2).
func (w *Worker) onClientWritable(s *session) {
	for s.bytesSent < s.responseSize {
		off := s.bytesSent
		remaining := int(s.responseSize - s.bytesSent)
		n, err := unix.Sendfile(s.fd, s.responseFD, &off, remaining)
		if n > 0 {
			s.bytesSent += int64(n)
			s.lastActivity = w.clock.Now()
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EPIPE {
				w.disconnect(s)
				return
			}
			w.log.Warn("sendfile failed", "peer", s.peerAddr, "err", err)
			if s.bytesSent == 0 {
				w.sendError(s, gopherd.ErrCodeInternal)
			}
			w.disconnect(s)
			return
		}
		if n == 0 {
			break
		}
	}
	if s.bytesSent >= s.responseSize {
		w.observer.ObserveStaticServed(uint64(s.bytesSent))
		w.disconnect(s)
	}
}

func (w *Worker) onClientErrorOrHangup(s *session) {
	if s.state == stateCGIRunning {
		_ = pidfdSendSignal(s.pidfd, unix.SIGKILL)
		return
	}
	w.disconnect(s)
}

// onTimer implements the idle-sweep of spec §4.4.8.
func (w *Worker) onTimer(fd int, _ eventloop.Event, _, _ any) {
	var buf [8]byte
	_, _ = unix.Read(w.timerFD, buf[:])

	now := w.clock.Now()
	for _, s := range w.sessions {
		if now.Sub(s.lastActivity) < w.cfg.Timeout {
			continue
		}
		switch s.state {
		case stateCGIRunning:
			if !cgiStillStreaming(s.fd, w.cfg.Timeout) {
				w.observer.ObserveCGIKilled()
				_ = pidfdSendSignal(s.pidfd, unix.SIGKILL)
			}
		default:
			w.observer.ObserveTimeout()
			if s.bytesSent == 0 {
				w.sendError(s, gopherd.ErrCodeTimeout)
			}
			w.disconnect(s)
		}
	}
}

// cgiStillStreaming consults TCP_INFO to decide whether a CGI connection has
// sent data within the last timeout, per spec §4.4.8. An unavailable metric
// is treated as "not streaming" so a stuck child is still reclaimed.
func cgiStillStreaming(fd int, timeout time.Duration) bool {
	info, err := unix.GetsockoptTCPInfo(fd, unix.SOL_TCP, unix.TCP_INFO)
	if err != nil {
		return false
	}
	return time.Duration(info.Last_data_sent)*time.Millisecond < timeout
}

// onSignal implements spec §4.4.9: SIGTERM requests the loop to exit.
func (w *Worker) onSignal(fd int, _ eventloop.Event, _, _ any) {
	var info unix.SignalfdSiginfo
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&info)), unsafe.Sizeof(info))
	_, _ = unix.Read(w.signalFD, buf)
	w.log.Info("received shutdown signal")
	w.loop.Exit()
}

// disconnect releases a session's descriptors in the fixed order of spec
// §4.4.10 and removes it from the live set.
func (w *Worker) disconnect(s *session) {
	if s.responseFD >= 0 {
		_ = unix.Close(s.responseFD)
		s.responseFD = -1
	}
	if s.dirFD >= 0 {
		_ = unix.Close(s.dirFD)
		s.dirFD = -1
	}
	if s.pidfd >= 0 {
		_ = w.loop.Remove(s.pidfd)
		_ = unix.Close(s.pidfd)
		s.pidfd = -1
	}
	_ = w.loop.Remove(s.fd)
	_ = unix.Close(s.fd)
	delete(w.sessions, s.fd)
	w.clientCount--
}

// cleanup runs when the event loop exits: kill remaining CGI children and
// release the worker's own descriptors.
func (w *Worker) cleanup() {
	for _, s := range w.sessions {
		if s.state == stateCGIRunning && s.pidfd >= 0 {
			_ = pidfdSendSignal(s.pidfd, unix.SIGKILL)
		}
	}
	for fd := range w.sessions {
		if s, ok := w.sessions[fd]; ok {
			w.disconnect(s)
		}
	}
	if w.listenFD >= 0 {
		_ = unix.Close(w.listenFD)
	}
	if w.signalFD >= 0 {
		_ = unix.Close(w.signalFD)
	}
	if w.timerFD >= 0 {
		_ = unix.Close(w.timerFD)
	}
	if w.contentDir >= 0 {
		_ = unix.Close(w.contentDir)
	}
	if w.loop != nil {
		_ = w.loop.Close()
	}
}
