// Package engine implements the Lattice server core: the single-threaded
// poll-based event loop, the per-connection protocol state machine, and
// the command executor over the shared keyspace.
//
// The loop goroutine exclusively owns the keyspace, the timer manager,
// and every connection. The only other threads of execution are the
// worker pool (which releases large sorted sets it has sole ownership
// of) and whatever serves metrics.
package engine
