package worker

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// raiseFDLimit raises the soft RLIMIT_NOFILE to at least want, failing if
// the hard limit is insufficient (spec §4.4.1).
func raiseFDLimit(want uint64) error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return err
	}
	if rlim.Cur >= want {
		return nil
	}
	if rlim.Max < want {
		return fmt.Errorf("RLIMIT_NOFILE hard limit %d is below required %d", rlim.Max, want)
	}
	rlim.Cur = want
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}
