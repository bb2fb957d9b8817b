//go:build linux

package worker

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setParentDeathSignal asks the kernel to deliver sig to this process when
// its parent dies (spec §4.4.1), so a worker exits if the supervisor does.
func setParentDeathSignal(sig unix.Signal) error {
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_SET_PDEATHSIG, uintptr(sig), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// pidfdSendSignal delivers sig to the process referenced by pidfd.
// golang.org/x/sys/unix does not wrap pidfd_send_signal directly.
func pidfdSendSignal(pidfd int, sig unix.Signal) error {
	_, _, errno := unix.Syscall6(unix.SYS_PIDFD_SEND_SIGNAL, uintptr(pidfd), uintptr(sig), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// cgiExecParams holds everything execveatByFD needs, pre-allocated before a
// procfork.Fork call so the child branch performs no Go-runtime allocation
// (see the package doc comment on procfork.Fork).
type cgiExecParams struct {
	fd    int
	argvp []*byte
	envpp []*byte
	empty *byte
}

// prepareCGIExec builds the NUL-terminated argv/envp arrays and the empty
// pathname execveat needs, all before forking.
func prepareCGIExec(fd int, argv, envp []string) (*cgiExecParams, error) {
	argvp, err := slicePtr(argv)
	if err != nil {
		return nil, err
	}
	envpp, err := slicePtr(envp)
	if err != nil {
		return nil, err
	}
	empty, err := unix.BytePtrFromString("")
	if err != nil {
		return nil, err
	}
	return &cgiExecParams{fd: fd, argvp: argvp, envpp: envpp, empty: empty}, nil
}

// execveatByFD execs the file referenced by p.fd (opened close-on-exec; the
// caller must have cleared FD_CLOEXEC first since AT_EMPTY_PATH still
// requires the descriptor to survive exec long enough for the kernel to
// read it) in place of the calling process image. Performs only the raw
// syscall: safe to call in a post-fork child.
func execveatByFD(p *cgiExecParams) error {
	_, _, errno := unix.RawSyscall6(
		unix.SYS_EXECVEAT,
		uintptr(p.fd),
		uintptr(unsafe.Pointer(p.empty)),
		uintptr(unsafe.Pointer(&p.argvp[0])),
		uintptr(unsafe.Pointer(&p.envpp[0])),
		uintptr(unix.AT_EMPTY_PATH),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// rawDup2 and rawFchdir perform the bare dup2(2)/fchdir(2) syscalls: safe to
// call in a post-fork child, unlike the traced unix.Dup2/unix.Fchdir.
func rawDup2(oldfd, newfd int) error {
	_, _, errno := unix.RawSyscall(unix.SYS_DUP2, uintptr(oldfd), uintptr(newfd), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func rawFchdir(fd int) error {
	_, _, errno := unix.RawSyscall(unix.SYS_FCHDIR, uintptr(fd), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// rawWrite performs the bare write(2) syscall: safe to call in a post-fork
// child. Best-effort; callers that use it to report a failure right before
// _exit don't have a way to retry a short write.
func rawWrite(fd int, p []byte) {
	if len(p) == 0 {
		return
	}
	unix.RawSyscall(unix.SYS_WRITE, uintptr(fd), uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)))
}

// clearCloExec removes FD_CLOEXEC from fd.
func clearCloExec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
	return err
}

// slicePtr builds a NULL-terminated argv/envp-style array of C strings.
func slicePtr(ss []string) ([]*byte, error) {
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
