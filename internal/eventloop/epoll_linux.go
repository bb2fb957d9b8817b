//go:build linux

package eventloop

import (
	"errors"

	"golang.org/x/sys/unix"
)

// callback is the registry entry for one descriptor. Its address is stable
// for its lifetime (Go's GC never moves a heap object reachable through a
// live pointer), but unlike the C original we cannot stash that pointer
// directly in kernel memory, so epoll_event.Fd carries the descriptor and
// callback lookup goes through epoll's own map.
type callback struct {
	fd  int
	fn  Callback
	ud1 any
	ud2 any
}

// epollLoop is the concrete, single-threaded Loop implementation. It carries
// no internal locking: the spec's concurrency model (§5) requires exactly
// one goroutine to drive Enter/Once and to call Add/Mod/Remove, the same
// discipline the C original relies on by running its whole worker on one
// thread.
type epollLoop struct {
	epfd      int
	events    []unix.EpollEvent
	callbacks map[int]*callback
	// released holds entries detached this batch whose slot must not be
	// reused until the batch finishes dispatching, mirroring the C
	// original's deferred-free callbacks_gc_list.
	released []*callback
	run      bool
}

// Create allocates a Loop backed by epoll. sizeHint bounds how many ready
// descriptors a single wait call may return.
func Create(sizeHint int) (Loop, error) {
	if sizeHint <= 0 {
		sizeHint = 64
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollLoop{
		epfd:      fd,
		events:    make([]unix.EpollEvent, sizeHint),
		callbacks: make(map[int]*callback),
	}, nil
}

func toEpollEvents(mask Event) uint32 {
	var e uint32
	if mask&EventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	if mask&EventError != 0 {
		e |= unix.EPOLLERR
	}
	if mask&EventHangup != 0 {
		e |= unix.EPOLLHUP
	}
	if mask&EventEdgeTriggered != 0 {
		e |= unix.EPOLLET
	}
	return e
}

func fromEpollEvents(e uint32) Event {
	var mask Event
	if e&unix.EPOLLIN != 0 {
		mask |= EventReadable
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= EventWritable
	}
	if e&unix.EPOLLERR != 0 {
		mask |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		mask |= EventHangup
	}
	return mask
}

func (l *epollLoop) Add(fd int, mask Event, cb Callback, ud1, ud2 any) error {
	if _, exists := l.callbacks[fd]; exists {
		return unix.EEXIST
	}
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	l.callbacks[fd] = &callback{fd: fd, fn: cb, ud1: ud1, ud2: ud2}
	return nil
}

func (l *epollLoop) Mod(fd int, mask Event, cb Callback, ud1, ud2 any) error {
	entry, ok := l.callbacks[fd]
	if !ok {
		return unix.EBADF
	}
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return err
	}
	entry.fn, entry.ud1, entry.ud2 = cb, ud1, ud2
	return nil
}

func (l *epollLoop) ModEvents(fd int, mask Event) error {
	if _, ok := l.callbacks[fd]; !ok {
		return unix.EBADF
	}
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (l *epollLoop) ModCallback(fd int, cb Callback, ud1, ud2 any) error {
	entry, ok := l.callbacks[fd]
	if !ok {
		return unix.EBADF
	}
	entry.fn, entry.ud1, entry.ud2 = cb, ud1, ud2
	return nil
}

// Remove detaches fd immediately and defers freeing its entry until the
// current dispatch batch finishes, so a callback may remove its own (or any
// other) descriptor without corrupting the in-flight readiness batch.
func (l *epollLoop) Remove(fd int) error {
	entry, ok := l.callbacks[fd]
	if !ok {
		return unix.EBADF
	}
	err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	entry.fn = nil // tombstone: a pending event for fd in this batch becomes a no-op
	delete(l.callbacks, fd)
	l.released = append(l.released, entry)
	if err != nil && !errors.Is(err, unix.ENOENT) {
		return err
	}
	return nil
}

func (l *epollLoop) dispatchOnce(n int) {
	for i := 0; i < n; i++ {
		ev := l.events[i]
		entry, ok := l.callbacks[int(ev.Fd)]
		if !ok || entry.fn == nil {
			continue
		}
		entry.fn(entry.fd, fromEpollEvents(ev.Events), entry.ud1, entry.ud2)
	}
	l.released = l.released[:0]
}

func (l *epollLoop) Once(timeoutMs int) (int, error) {
	n, err := unix.EpollWait(l.epfd, l.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	l.dispatchOnce(n)
	return n, nil
}

func (l *epollLoop) Enter(timeoutMs int, tick func(n int, err error)) error {
	l.run = true
	for l.run {
		n, err := l.Once(timeoutMs)
		if tick != nil {
			tick(n, err)
		} else if err != nil || n <= 0 {
			return err
		}
	}
	return nil
}

func (l *epollLoop) Exit() {
	l.run = false
}

func (l *epollLoop) Close() error {
	l.callbacks = nil
	l.released = nil
	return unix.Close(l.epfd)
}
