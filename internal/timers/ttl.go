package timers

// TTLTimer tracks one entry's absolute expiry. Create it with NewTTLTimer,
// which returns an unarmed timer; the zero value has heap index 0 and
// reports itself as armed. Hosts embed it and must cancel it before they
// are destroyed.
type TTLTimer struct {
	deadline int64
	key      string
	index    int // position in the manager's heap, -1 when unarmed
}

// NewTTLTimer returns an unarmed TTL timer for the given key handle.
func NewTTLTimer(key string) TTLTimer {
	return TTLTimer{key: key, index: -1}
}

// Armed reports whether the timer is currently in the manager's heap.
func (t *TTLTimer) Armed() bool {
	return t.index >= 0
}

// Deadline returns the absolute expiry in milliseconds, 0 when unarmed.
func (t *TTLTimer) Deadline() int64 {
	return t.deadline
}

// Key returns the keyspace handle this timer expires.
func (t *TTLTimer) Key() string {
	return t.key
}

// ttlHeap is a min-heap of TTL timers ordered by deadline, implementing
// container/heap.Interface. Each timer caches its heap index so the
// manager can remove or update it in O(log n) without searching.
type ttlHeap []*TTLTimer

func (h ttlHeap) Len() int { return len(h) }

func (h ttlHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }

func (h ttlHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *ttlHeap) Push(x any) {
	t := x.(*TTLTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *ttlHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
