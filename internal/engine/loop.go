package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/latticekv/lattice/internal/keyspace"
	"github.com/latticekv/lattice/internal/telemetry/logger"
	"github.com/latticekv/lattice/internal/telemetry/metric"
	"github.com/latticekv/lattice/internal/timers"
	"github.com/latticekv/lattice/internal/worker"
)

// Config holds the engine's tunables.
type Config struct {
	// Addr is the TCP listen address; the socket binds the wildcard
	// address on Addr's port.
	Addr string
	// AcceptRate caps accepted connections per second (0 = unlimited).
	AcceptRate int
	// IdleTimeout is the per-connection idle timeout.
	IdleTimeout time.Duration
	// Workers is the worker-pool size.
	Workers int
	// LargeZSetLen is the sorted-set size at which destruction moves to
	// the worker pool.
	LargeZSetLen int
	// TTLSweepBudget caps TTL expirations processed per tick.
	TTLSweepBudget int
	// MaxResponseLen is each connection's outgoing bound.
	MaxResponseLen int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":6380",
		IdleTimeout:    timers.DefaultIdleTimeout * time.Millisecond,
		Workers:        worker.DefaultWorkers,
		LargeZSetLen:   DefaultLargeZSetLen,
		TTLSweepBudget: timers.DefaultSweepBudget,
		MaxResponseLen: 0, // wire.DefaultMaxResponseLen
	}
}

// Engine is the server core. Start binds the listener, Run blocks in the
// event loop, Shutdown interrupts it.
type Engine struct {
	cfg     Config
	log     logger.Logger
	metrics *metric.Metrics

	ks   *keyspace.Keyspace
	tm   *timers.Manager
	pool *worker.Pool
	exec *Executor

	listener int
	conns    map[int]*Conn
	pollfds  []unix.PollFd
	scratch  []byte

	// Self-pipe: Shutdown writes wakeW, the poll loop watches wakeR.
	wakeR, wakeW int

	accepts *rate.Limiter
	running atomic.Bool
	done    chan struct{}
}

// New returns an unstarted engine.
func New(cfg Config, log logger.Logger, metrics *metric.Metrics) *Engine {
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		ks:       keyspace.New(),
		tm:       timers.NewManager(cfg.IdleTimeout.Milliseconds()),
		pool:     worker.NewPool(cfg.Workers),
		listener: -1,
		conns:    make(map[int]*Conn),
		scratch:  make([]byte, readBufSize),
		wakeR:    -1,
		wakeW:    -1,
		done:     make(chan struct{}),
	}
	e.exec = NewExecutor(e.ks, e.tm, e.pool, log, metrics, cfg.LargeZSetLen, nowMS)

	if cfg.AcceptRate > 0 {
		e.accepts = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptRate)
	}
	return e
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// Start binds the listener and the shutdown pipe. It does not run the
// loop; call Run.
func (e *Engine) Start() error {
	fd, err := listen(e.cfg.Addr)
	if err != nil {
		return err
	}
	e.listener = fd

	var pipeFDs [2]int
	if err := unix.Pipe(pipeFDs[:]); err != nil {
		unix.Close(fd)
		e.listener = -1
		return fmt.Errorf("shutdown pipe: %w", err)
	}
	e.wakeR, e.wakeW = pipeFDs[0], pipeFDs[1]
	_ = unix.SetNonblock(e.wakeR, true)

	e.running.Store(true)
	e.log.Info("started server", "addr", e.cfg.Addr)
	return nil
}

// Port returns the port the listener is bound to, 0 before Start. Useful
// when the configured address requested an ephemeral port.
func (e *Engine) Port() int {
	if e.listener < 0 {
		return 0
	}
	sa, err := unix.Getsockname(e.listener)
	if err != nil {
		return 0
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet6:
		return a.Port
	case *unix.SockaddrInet4:
		return a.Port
	}
	return 0
}

// Run executes the event loop until Shutdown. Failure of the readiness
// wait itself is fatal and returned.
func (e *Engine) Run() error {
	defer close(e.done)
	defer e.cleanup()

	for e.running.Load() {
		e.buildPollFDs()

		n, err := unix.Poll(e.pollfds, e.tm.NextDeadline(nowMS()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.log.Error("readiness wait failed", "error", err)
			return fmt.Errorf("poll: %w", err)
		}

		if n > 0 {
			if e.pollfds[0].Revents&unix.POLLIN != 0 {
				e.acceptOne()
			}
			if e.pollfds[1].Revents&unix.POLLIN != 0 {
				// Shutdown wake-up.
				break
			}
			e.dispatch()
		}

		e.sweepTimers()
	}
	return nil
}

// Shutdown interrupts the loop and waits for it to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	// Wake the poll; the loop observes running=false and exits.
	_, _ = unix.Write(e.wakeW, []byte{0})

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildPollFDs rebuilds the readiness array: listener, shutdown pipe,
// then one slot per live connection reflecting its intents.
func (e *Engine) buildPollFDs() {
	e.pollfds = e.pollfds[:0]
	e.pollfds = append(e.pollfds,
		unix.PollFd{Fd: int32(e.listener), Events: unix.POLLIN},
		unix.PollFd{Fd: int32(e.wakeR), Events: unix.POLLIN},
	)

	for fd, c := range e.conns {
		var events int16
		if c.wantRead {
			events |= unix.POLLIN
		}
		if c.wantWrite {
			events |= unix.POLLOUT
		}
		e.pollfds = append(e.pollfds, unix.PollFd{Fd: int32(fd), Events: events})
	}
}

// acceptOne accepts a single pending connection. Per-connection setup
// failures are logged and dropped; the loop never exits for them.
func (e *Engine) acceptOne() {
	fd, _, err := unix.Accept(e.listener)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) {
			e.log.Warn("failed to accept new connection", "error", err)
		}
		return
	}

	if e.accepts != nil && !e.accepts.Allow() {
		e.log.Warn("accept rate exceeded, dropping connection", "fd", fd)
		unix.Close(fd)
		return
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		e.log.Warn("failed to set socket non-blocking", "fd", fd, "error", err)
		unix.Close(fd)
		return
	}

	c := newConn(fd, e.cfg.MaxResponseLen)
	e.conns[fd] = c
	e.tm.ArmIdle(c.idle, nowMS())
	e.metrics.ConnOpened()
	e.log.Info("new connection", "fd", fd, "conn", c.id)
}

// dispatch drives every ready connection: any readiness resets the idle
// timer; readable drives READ, writable drives WRITE, error flags or a
// pending close intent tear the connection down.
func (e *Engine) dispatch() {
	for _, pfd := range e.pollfds[2:] {
		if pfd.Revents == 0 {
			continue
		}

		c, ok := e.conns[int(pfd.Fd)]
		if !ok {
			continue
		}
		e.tm.ArmIdle(c.idle, nowMS())

		if pfd.Revents&unix.POLLIN != 0 {
			c.handleRead(e, e.scratch)
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			c.handleWrite(e)
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLNVAL) != 0 || c.wantClose {
			e.closeConn(c)
		}
	}
}

// sweepTimers processes expirations: idle hits close connections, TTL
// hits remove and destroy entries (budgeted per tick).
func (e *Engine) sweepTimers() {
	idleFDs, expiredKeys := e.tm.Sweep(nowMS(), e.cfg.TTLSweepBudget)

	for _, fd := range idleFDs {
		if c, ok := e.conns[fd]; ok {
			e.log.Info("connection exceeded idle timeout", "fd", fd, "conn", c.id)
			e.metrics.IdleClosed()
			e.closeConn(c)
		}
	}

	for _, key := range expiredKeys {
		if entry := e.ks.Remove(key); entry != nil {
			e.log.Debug("key expired", "key", key)
			e.metrics.Expired()
			e.exec.DeleteEntry(entry)
		}
	}
	if len(expiredKeys) > 0 {
		e.metrics.SetKeys(e.ks.Len())
	}
}

func (e *Engine) closeConn(c *Conn) {
	unix.Close(c.fd)
	e.tm.CancelIdle(c.idle)
	delete(e.conns, c.fd)
	e.metrics.ConnClosed()
	e.log.Info("closed connection", "fd", c.fd, "conn", c.id)
}

// cleanup tears down every connection, the listener, the pipe, and the
// worker pool. In-flight destruction tasks run to completion.
func (e *Engine) cleanup() {
	for _, c := range e.conns {
		e.closeConn(c)
	}
	if e.listener >= 0 {
		unix.Close(e.listener)
		e.listener = -1
	}
	if e.wakeR >= 0 {
		unix.Close(e.wakeR)
		unix.Close(e.wakeW)
		e.wakeR, e.wakeW = -1, -1
	}
	e.pool.Close()
	e.log.Info("server stopped")
}
