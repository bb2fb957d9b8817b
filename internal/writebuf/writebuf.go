// Package writebuf implements a fixed-size formatted-write buffer that
// coalesces small Printf-style writes into larger descriptor writes, with
// short-write and EAGAIN handling via a single-descriptor poll.
package writebuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Buffer binds an output file descriptor to a fixed backing array and two
// cursors: write (next free byte) and flush (next unflushed byte).
// Invariant: 0 <= flush <= write <= len(base).
type Buffer struct {
	fd        int
	timeoutMs int
	base      []byte
	write     int
	flush     int
	written   uint64
}

// New creates a Buffer that writes to fd, using base as its backing store.
// timeoutMs bounds how long Flush will poll when fd would block.
func New(fd int, timeoutMs int, base []byte) *Buffer {
	return &Buffer{fd: fd, timeoutMs: timeoutMs, base: base}
}

// Remaining returns the number of free bytes available to Push.
func (b *Buffer) Remaining() int {
	return len(b.base) - b.write
}

// Unwritten returns the number of bytes queued but not yet flushed.
func (b *Buffer) Unwritten() int {
	return b.write - b.flush
}

// Written returns the cumulative number of bytes this Buffer has flushed.
func (b *Buffer) Written() uint64 {
	return b.written
}

// Push formats into the free region of the buffer and advances the write
// cursor. If the formatted text would not fit, the push is discarded and
// Push returns (0, nil) without writing a partial line, mirroring the
// original's "leave the buffer byte-exact or don't touch it" behavior.
func (b *Buffer) Push(format string, args ...any) (int, error) {
	s := fmt.Sprintf(format, args...)
	if len(s) > b.Remaining() {
		return 0, nil
	}
	n := copy(b.base[b.write:], s)
	b.write += n
	return n, nil
}

// Flush writes from the flush cursor to the write cursor, looping on short
// writes and polling on EAGAIN up to the configured timeout. On success
// both cursors reset to the start of the buffer.
func (b *Buffer) Flush() error {
	for b.Unwritten() > 0 {
		n, err := unix.Write(b.fd, b.base[b.flush:b.write])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				pfd := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLOUT}}
				ready, perr := unix.Poll(pfd, b.timeoutMs)
				if perr != nil {
					return perr
				}
				if ready == 0 {
					return unix.EAGAIN
				}
				continue
			}
			return err
		}
		b.flush += n
		b.written += uint64(n)
	}
	b.write = 0
	b.flush = 0
	return nil
}

// CheckFlush flushes if fewer than leftover bytes of free space remain.
func (b *Buffer) CheckFlush(leftover int) error {
	if b.Remaining() < leftover {
		return b.Flush()
	}
	return nil
}

// Write implements io.Writer by pushing p into the buffer, flushing first if
// p would not otherwise fit. A p larger than the whole backing array bypasses
// the buffer and is written directly, since it could never fit regardless of
// flushing.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Remaining() {
		if err := b.Flush(); err != nil {
			return 0, err
		}
	}
	if len(p) > len(b.base) {
		return unix.Write(b.fd, p)
	}
	n := copy(b.base[b.write:], p)
	b.write += n
	return n, nil
}
