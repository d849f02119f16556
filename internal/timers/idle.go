package timers

import "container/list"

// DefaultIdleTimeout is the fixed idle timeout in milliseconds.
const DefaultIdleTimeout = 60_000

// IdleTimer tracks one connection's idle deadline. The zero value is
// unarmed. Because the timeout is a fixed constant, arm order equals
// expiry order and the manager keeps idle timers in a FIFO.
type IdleTimer struct {
	deadline int64
	fd       int
	elem     *list.Element
}

// NewIdleTimer returns an unarmed idle timer for the given fd handle.
func NewIdleTimer(fd int) *IdleTimer {
	return &IdleTimer{fd: fd}
}

// Armed reports whether the timer is currently in the manager's FIFO.
func (t *IdleTimer) Armed() bool {
	return t.elem != nil
}

// Deadline returns the absolute expiry in milliseconds, 0 when unarmed.
func (t *IdleTimer) Deadline() int64 {
	return t.deadline
}

// FD returns the connection handle this timer expires.
func (t *IdleTimer) FD() int {
	return t.fd
}
