//go:build linux

package supervisor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// execParams holds a fully-resolved execve(2) call, built before forking so
// the post-fork child performs no Go-runtime allocation (see the package
// doc comment on procfork.Fork).
type execParams struct {
	path  *byte
	argvp []*byte
	envpp []*byte
}

func prepareExec(path string, argv, envp []string) (*execParams, error) {
	pathp, err := unix.BytePtrFromString(path)
	if err != nil {
		return nil, err
	}
	argvp, err := bytePtrSlice(argv)
	if err != nil {
		return nil, err
	}
	envpp, err := bytePtrSlice(envp)
	if err != nil {
		return nil, err
	}
	return &execParams{path: pathp, argvp: argvp, envpp: envpp}, nil
}

// execveRaw performs the bare execve syscall with pre-built pointers: safe
// to call in a post-fork child.
func execveRaw(p *execParams) error {
	_, _, errno := unix.RawSyscall(
		unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(p.path)),
		uintptr(unsafe.Pointer(&p.argvp[0])),
		uintptr(unsafe.Pointer(&p.envpp[0])),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func bytePtrSlice(ss []string) ([]*byte, error) {
	out := make([]*byte, len(ss)+1)
	for i, s := range ss {
		p, err := unix.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// pidfdSendSignal delivers sig to the process referenced by pidfd.
func pidfdSendSignal(pidfd int, sig unix.Signal) error {
	_, _, errno := unix.Syscall6(unix.SYS_PIDFD_SEND_SIGNAL, uintptr(pidfd), uintptr(sig), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
