// Package timers provides the unified timer manager: a FIFO of
// fixed-timeout idle timers and a min-heap of per-key TTL timers sharing
// one next-deadline computation.
//
// The manager never holds a pointer to a timer's host object. Sweeping
// yields expired handles (connection fds, keys) that the event loop
// resolves itself.
package timers
