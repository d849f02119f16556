package timers

import (
	"container/heap"
	"container/list"
)

// DefaultSweepBudget caps TTL expirations processed per sweep so a burst
// of simultaneous expiries cannot stall the event loop; the remainder is
// handled on the next tick.
const DefaultSweepBudget = 1000

// Manager is the unified view over idle timers and TTL timers. It is
// owned by the event loop and is not safe for concurrent use.
type Manager struct {
	idleTimeout int64
	idle        *list.List // of *IdleTimer, front = earliest deadline
	ttl         ttlHeap
}

// NewManager returns a Manager with the given idle timeout in
// milliseconds (DefaultIdleTimeout when non-positive).
func NewManager(idleTimeoutMS int64) *Manager {
	if idleTimeoutMS <= 0 {
		idleTimeoutMS = DefaultIdleTimeout
	}
	return &Manager{
		idleTimeout: idleTimeoutMS,
		idle:        list.New(),
	}
}

// ArmIdle sets t's deadline to now plus the idle timeout and moves it to
// the back of the FIFO, arming it first if needed.
func (m *Manager) ArmIdle(t *IdleTimer, now int64) {
	t.deadline = now + m.idleTimeout
	if t.elem != nil {
		m.idle.Remove(t.elem)
	}
	t.elem = m.idle.PushBack(t)
}

// CancelIdle removes t from the FIFO. Idempotent on unarmed timers.
func (m *Manager) CancelIdle(t *IdleTimer) {
	if t.elem == nil {
		return
	}
	m.idle.Remove(t.elem)
	t.elem = nil
	t.deadline = 0
}

// ArmTTL sets t's absolute deadline, inserting it into the heap or
// sifting it to its new position if already armed.
func (m *Manager) ArmTTL(t *TTLTimer, deadline int64) {
	t.deadline = deadline
	if t.index >= 0 {
		heap.Fix(&m.ttl, t.index)
		return
	}
	heap.Push(&m.ttl, t)
}

// CancelTTL removes t from the heap. Idempotent on unarmed timers.
func (m *Manager) CancelTTL(t *TTLTimer) {
	if t.index < 0 {
		return
	}
	heap.Remove(&m.ttl, t.index)
	t.deadline = 0
}

// NextDeadline returns the milliseconds until the earliest deadline: -1
// when no timer is armed, 0 when the earliest has already passed.
func (m *Manager) NextDeadline(now int64) int {
	next := int64(-1)

	if e := m.idle.Front(); e != nil {
		next = e.Value.(*IdleTimer).deadline
	}
	if len(m.ttl) > 0 {
		if d := m.ttl[0].deadline; next == -1 || d < next {
			next = d
		}
	}

	if next == -1 {
		return -1
	}
	if now >= next {
		return 0
	}
	return int(next - now)
}

// Sweep removes every expired idle timer and up to budget expired TTL
// timers, returning the handles of what expired. Swept timers are unarmed
// before they are returned, so a later cancel from the host's teardown
// path is a no-op.
func (m *Manager) Sweep(now int64, budget int) (idleFDs []int, expiredKeys []string) {
	if budget <= 0 {
		budget = DefaultSweepBudget
	}

	for e := m.idle.Front(); e != nil; e = m.idle.Front() {
		t := e.Value.(*IdleTimer)
		if t.deadline > now {
			break
		}
		m.CancelIdle(t)
		idleFDs = append(idleFDs, t.fd)
	}

	for n := 0; len(m.ttl) > 0 && n < budget; n++ {
		t := m.ttl[0]
		if t.deadline > now {
			break
		}
		m.CancelTTL(t)
		expiredKeys = append(expiredKeys, t.key)
	}

	return idleFDs, expiredKeys
}

// IdleLen returns the number of armed idle timers.
func (m *Manager) IdleLen() int {
	return m.idle.Len()
}

// TTLLen returns the number of armed TTL timers.
func (m *Manager) TTLLen() int {
	return len(m.ttl)
}
