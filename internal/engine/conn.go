package engine

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sys/unix"

	"github.com/latticekv/lattice/internal/timers"
	"github.com/latticekv/lattice/internal/wire"
)

// readBufSize is the per-read scratch buffer size, large enough to absorb
// a burst of pipelined requests in one readiness event.
const readBufSize = 64 * 1024

// Conn is the per-socket protocol state machine. States map onto the
// three intents: READ (wantRead), WRITE (wantWrite), CLOSING (wantClose,
// terminal on the next tick).
type Conn struct {
	fd int
	id string // for log correlation

	wantRead  bool
	wantWrite bool
	wantClose bool

	// closeAfterDrain closes the connection once outgoing empties,
	// used after an oversize response was replaced with ERR(TOO_BIG).
	closeAfterDrain bool

	incoming *wire.Buffer
	outgoing *wire.Buffer

	idle           *timers.IdleTimer
	maxResponseLen int

	// Injected socket I/O, swapped out by tests.
	read  func(fd int, p []byte) (int, error)
	write func(fd int, p []byte) (int, error)
}

func newConn(fd, maxResponseLen int) *Conn {
	return &Conn{
		fd:             fd,
		id:             ulid.Make().String(),
		wantRead:       true,
		incoming:       wire.NewBuffer(),
		outgoing:       wire.NewBuffer(),
		idle:           timers.NewIdleTimer(fd),
		maxResponseLen: maxResponseLen,
		read:           unix.Read,
		write:          unix.Write,
	}
}

// handleRead drives the READ state on a readable event: pull bytes into
// the incoming buffer, run the parse-execute loop to exhaustion so
// pipelined requests are answered in one pass, then flip to WRITE with
// one optimistic send.
func (c *Conn) handleRead(e *Engine, scratch []byte) {
	if !c.recvData(e, scratch) {
		return
	}

	for {
		req, n, err := wire.UnmarshalRequest(c.incoming.Data())
		if err != nil {
			if errors.Is(err, wire.ErrIncomplete) {
				break
			}
			// Oversize or malformed framing: the stream offset can no
			// longer be trusted, close without a response.
			e.log.Warn("request framing violation, closing connection",
				"conn", c.id, "error", err)
			c.wantClose = true
			break
		}
		c.incoming.Consume(n)

		e.log.Debug("request", "conn", c.id, "cmd", req.String())
		resp := e.exec.Execute(req.Cmd)
		if merr := resp.Marshal(c.outgoing, c.maxResponseLen); merr != nil {
			e.log.Warn("response exceeds the size limit", "conn", c.id)
			e.metrics.Oversize()
			tooBig := wire.Err(wire.ErrCodeTooBig, "response is too big")
			_ = tooBig.Marshal(c.outgoing, c.maxResponseLen)
			c.closeAfterDrain = true
			break
		}
	}

	if c.wantClose {
		return
	}

	if c.outgoing.Len() > 0 {
		c.wantRead = false
		c.wantWrite = true
		// The socket is likely writable in a request-response workload;
		// try now instead of waiting a tick.
		c.handleWrite(e)
	}
}

// recvData reads once into the incoming buffer. Returns false when there
// is nothing to parse (EAGAIN, error, or peer close).
func (c *Conn) recvData(e *Engine, scratch []byte) bool {
	n, err := c.read(c.fd, scratch)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return false
		}
		e.log.Warn("read error", "conn", c.id, "error", err)
		c.wantClose = true
		return false
	}
	if n == 0 {
		if c.incoming.Len() == 0 {
			e.log.Debug("peer closed connection", "conn", c.id)
		} else {
			e.log.Warn("peer closed connection mid-request", "conn", c.id,
				"buffered", c.incoming.Len())
		}
		c.wantClose = true
		return false
	}

	c.incoming.Append(scratch[:n])
	return true
}

// handleWrite drives the WRITE state on a writable event: drain outgoing,
// then flip back to READ (or close, after an oversize response).
func (c *Conn) handleWrite(e *Engine) {
	n, err := c.write(c.fd, c.outgoing.Data())
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		e.log.Warn("write error", "conn", c.id, "error", err)
		c.wantClose = true
		return
	}

	c.outgoing.Consume(n)
	if c.outgoing.Len() == 0 {
		if c.closeAfterDrain {
			c.wantClose = true
			return
		}
		c.wantRead = true
		c.wantWrite = false
	}
}
