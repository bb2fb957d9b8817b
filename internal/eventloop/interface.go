// Package eventloop implements a readiness-based event demultiplexer on top
// of Linux epoll: register a descriptor with an event mask and a callback,
// then run a blocking wait/dispatch loop. Removal is safe to call from
// inside a callback, including removal of the descriptor the callback is
// currently running for.
package eventloop

// Event is a bitmask of readiness conditions, matching epoll's flags.
type Event uint32

const (
	EventReadable Event = 1 << iota
	EventWritable
	EventError
	EventHangup
	// EventEdgeTriggered requests edge-triggered semantics (EPOLLET):
	// a callback fires only on the readiness transition and must drain
	// the descriptor until it would block.
	EventEdgeTriggered
)

// Callback is invoked when its descriptor becomes ready. events reports
// which conditions fired; ud1/ud2 are the values passed to Add/Mod.
type Callback func(fd int, events Event, ud1, ud2 any)

// Loop is the descriptor-set abstraction described in spec §4.1.
type Loop interface {
	// Add registers a previously unregistered descriptor.
	Add(fd int, mask Event, cb Callback, ud1, ud2 any) error
	// Mod replaces the mask and callback of a registered descriptor.
	Mod(fd int, mask Event, cb Callback, ud1, ud2 any) error
	// ModEvents replaces only the mask of a registered descriptor.
	ModEvents(fd int, mask Event) error
	// ModCallback replaces only the callback of a registered descriptor.
	ModCallback(fd int, cb Callback, ud1, ud2 any) error
	// Remove detaches fd from readiness monitoring. Safe to call from
	// within a callback, including the callback for fd itself.
	Remove(fd int) error
	// Enter runs the wait/dispatch loop until Exit is called. If tick is
	// non-nil it is invoked once per iteration with the raw wait return
	// value; otherwise a zero or negative wait result ends the loop.
	Enter(timeoutMs int, tick func(n int, err error)) error
	// Exit requests Enter to return after the current batch.
	Exit()
	// Once runs a single wait/dispatch iteration; useful for
	// deterministic stepping in tests.
	Once(timeoutMs int) (int, error)
	// Close releases the loop's own descriptor and any registered entries.
	Close() error
}
