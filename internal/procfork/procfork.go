//go:build linux

// Package procfork provides a raw fork primitive that atomically obtains a
// process descriptor (pidfd) for the new child, avoiding the race inherent
// in fork(2) followed by a separate pidfd_open(2) call.
//
// Go's runtime cannot safely continue running ordinary goroutine-based code
// in the child branch of a raw clone(2): only the cloning OS thread survives
// into the child, so the scheduler, garbage collector, and every goroutine
// not currently running on that thread are gone. Every caller of Fork must
// treat the child branch as a dead end that performs only raw syscalls and
// ends in execve/execveat before touching any other Go code.
package procfork

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Fork creates a child process and, in the same clone(2) call, binds a
// process descriptor to it (CLONE_PIDFD). In the parent it returns the
// child's pid and process descriptor. In the child it returns (0, -1, nil);
// the caller must immediately run a raw syscall sequence ending in exec,
// never ordinary Go code.
func Fork() (pid int, pidfd int, err error) {
	var fd int32
	r1, _, errno := unix.RawSyscall6(
		unix.SYS_CLONE,
		uintptr(unix.CLONE_PIDFD),
		0,
		uintptr(unsafe.Pointer(&fd)),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0, -1, errno
	}
	if r1 == 0 {
		return 0, -1, nil
	}
	return int(r1), int(fd), nil
}
