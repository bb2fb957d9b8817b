package gopherd

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	err := NewError("open", ErrCodeNotFound, "no such selector")

	require.Equal(t, "open", err.Op)
	require.Equal(t, ErrCodeNotFound, err.Code)
	require.Equal(t, "gopherd: no such selector (op=open)", err.Error())
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("open", syscall.ENOENT)

	require.Equal(t, syscall.ENOENT, err.Errno)
	require.Equal(t, ErrCodeNotFound, err.Code)
}

func TestWrapError(t *testing.T) {
	err := WrapError("open", syscall.EACCES)

	require.Equal(t, ErrCodeForbidden, err.Code)
	require.Equal(t, syscall.EACCES, err.Errno)
	require.True(t, errors.Is(err, syscall.EACCES))
}

func TestWrapErrorPassesThroughStructured(t *testing.T) {
	inner := NewError("fork", ErrCodeInternal, "clone failed")
	wrapped := WrapError("spawnWorker", inner)

	require.Equal(t, "spawnWorker", wrapped.Op)
	require.Equal(t, ErrCodeInternal, wrapped.Code)
}

func TestIsCode(t *testing.T) {
	err := NewError("timer", ErrCodeTimeout, "idle too long")

	require.True(t, IsCode(err, ErrCodeTimeout))
	require.False(t, IsCode(err, ErrCodeInternal))
	require.False(t, IsCode(nil, ErrCodeTimeout))
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("read", syscall.EIO)

	require.True(t, IsErrno(err, syscall.EIO))
	require.False(t, IsErrno(err, syscall.EPERM))
	require.False(t, IsErrno(nil, syscall.EIO))
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected ErrorCode
	}{
		{syscall.ENOENT, ErrCodeNotFound},
		{syscall.EACCES, ErrCodeForbidden},
		{syscall.EPERM, ErrCodeForbidden},
		{syscall.EINVAL, ErrCodeBadRequest},
		{syscall.ETIMEDOUT, ErrCodeTimeout},
		{syscall.EMFILE, ErrCodeUnavailable},
		{syscall.EIO, ErrCodeInternal},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, mapErrnoToCode(tc.errno))
	}
}

func TestGopherStatus(t *testing.T) {
	require.Equal(t, "404 Not Found", ErrCodeNotFound.GopherStatus())
	require.Equal(t, "403 Forbidden", ErrCodeForbidden.GopherStatus())
	require.Equal(t, "", ErrCodeSetup.GopherStatus())
}
