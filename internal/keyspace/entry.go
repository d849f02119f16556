package keyspace

import (
	"github.com/spaolacci/murmur3"

	"github.com/latticekv/lattice/internal/timers"
)

// Kind tags the live payload of an entry.
type Kind uint8

// Entry kinds.
const (
	KindString Kind = iota
	KindSortedSet
)

// Entry is one keyspace record. It simultaneously lives in the keyspace
// hash table (via the cached hash and chain link) and, when a TTL is set,
// in the timer manager's heap (via the embedded timer).
type Entry struct {
	key  string
	hash uint64
	next *Entry

	kind Kind
	str  string
	zset *SortedSet

	// TTL is the entry's expiry timer. Whoever removes the entry from the
	// keyspace must cancel it before the entry is destroyed.
	TTL timers.TTLTimer
}

// KeyHash computes the murmur3 hash of key. Entries compute it once at
// construction and cache it.
func KeyHash(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}

// NewStringEntry returns a STRING entry.
func NewStringEntry(key, value string) *Entry {
	return &Entry{
		key:  key,
		hash: KeyHash(key),
		kind: KindString,
		str:  value,
		TTL:  timers.NewTTLTimer(key),
	}
}

// NewSortedSetEntry returns an empty SORTED_SET entry.
func NewSortedSetEntry(key string) *Entry {
	return &Entry{
		key:  key,
		hash: KeyHash(key),
		kind: KindSortedSet,
		zset: NewSortedSet(),
		TTL:  timers.NewTTLTimer(key),
	}
}

// Key returns the entry's key.
func (e *Entry) Key() string {
	return e.key
}

// Kind returns the live payload's type tag.
func (e *Entry) Kind() Kind {
	return e.kind
}

// Str returns the string payload. Only meaningful for KindString.
func (e *Entry) Str() string {
	return e.str
}

// ZSet returns the sorted-set payload. Only meaningful for KindSortedSet.
func (e *Entry) ZSet() *SortedSet {
	return e.zset
}

// SetStr replaces the payload with a byte string, reshaping the entry to
// KindString. It returns the displaced sorted set, if any, so the caller
// can decide how to release it.
func (e *Entry) SetStr(value string) *SortedSet {
	displaced := e.zset
	e.kind = KindString
	e.str = value
	e.zset = nil
	return displaced
}
