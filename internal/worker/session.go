package worker

import (
	"time"

	"github.com/gophernest/sgopherd/internal/constants"
)

// sessionState is the sub-state a client connection is in, per spec §3.
type sessionState int

const (
	stateReadingRequest sessionState = iota
	stateSendingFile
	stateCGIRunning
)

// session holds all per-client state. At most one of responseFD (state
// SendingFile) or pidfd (state CGIRunning) is set at a time; the other is
// -1, and both are -1 while reading the request.
type session struct {
	fd           int
	peerAddr     string
	lastActivity time.Time

	buf    [constants.MaxRequestSize]byte
	bufLen int

	state sessionState

	responseFD   int // -1 unless stateSendingFile
	responseSize int64
	bytesSent    int64

	dirFD int // -1 unless prepared via a directory selector
	pidfd int // -1 unless stateCGIRunning

	// normalizedPath is the selector resolved to a root-relative path
	// beginning with ".", used to build CGI's SCRIPT_NAME and to locate
	// the command's containing directory.
	normalizedPath string
	query          string
}

func newSession(fd int, peerAddr string, now time.Time) *session {
	return &session{
		fd:           fd,
		peerAddr:     peerAddr,
		lastActivity: now,
		state:        stateReadingRequest,
		responseFD:   -1,
		dirFD:        -1,
		pidfd:        -1,
	}
}
