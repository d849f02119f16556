package keyspace

import (
	"github.com/google/btree"
)

// Pair is one sorted-set member: a name with its score.
type Pair struct {
	Score float64
	Name  string
}

// pairLess orders pairs by score ascending, ties broken by name bytes.
func pairLess(a, b Pair) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Name < b.Name
}

const zsetTreeDegree = 16

// SortedSet is an associative container from name to score that also
// maintains (score, name) lexicographic order for rank and range queries.
// It composes a name map for point lookups with an ordered tree for
// scans, the two always describing the same pair set.
type SortedSet struct {
	byName map[string]float64
	tree   *btree.BTreeG[Pair]
}

// NewSortedSet returns an empty sorted set.
func NewSortedSet() *SortedSet {
	return &SortedSet{
		byName: make(map[string]float64),
		tree:   btree.NewG(zsetTreeDegree, pairLess),
	}
}

// Lookup returns the pair for name.
func (z *SortedSet) Lookup(name string) (Pair, bool) {
	score, ok := z.byName[name]
	if !ok {
		return Pair{}, false
	}
	return Pair{Score: score, Name: name}, true
}

// Insert upserts a pair, replacing any prior score for the name.
func (z *SortedSet) Insert(score float64, name string) {
	if old, ok := z.byName[name]; ok {
		if old == score {
			return
		}
		z.tree.Delete(Pair{Score: old, Name: name})
	}
	z.byName[name] = score
	z.tree.ReplaceOrInsert(Pair{Score: score, Name: name})
}

// Remove deletes the pair for name, reporting whether it was present.
func (z *SortedSet) Remove(name string) bool {
	score, ok := z.byName[name]
	if !ok {
		return false
	}
	delete(z.byName, name)
	z.tree.Delete(Pair{Score: score, Name: name})
	return true
}

// Rank returns the 0-based position of name in (score, name) order.
func (z *SortedSet) Rank(name string) (int, bool) {
	score, ok := z.byName[name]
	if !ok {
		return 0, false
	}

	rank := 0
	z.tree.AscendLessThan(Pair{Score: score, Name: name}, func(Pair) bool {
		rank++
		return true
	})
	return rank, true
}

// RangeFrom returns pairs >= (score, name) in (score, name) order,
// skipping offset pairs and then yielding at most limit (0 = unbounded).
func (z *SortedSet) RangeFrom(score float64, name string, offset, limit uint64) []Pair {
	var pairs []Pair
	var skipped uint64

	z.tree.AscendGreaterOrEqual(Pair{Score: score, Name: name}, func(p Pair) bool {
		if skipped < offset {
			skipped++
			return true
		}
		pairs = append(pairs, p)
		return limit == 0 || uint64(len(pairs)) < limit
	})
	return pairs
}

// Len returns the number of pairs.
func (z *SortedSet) Len() int {
	return len(z.byName)
}

// Release drops the set's contents. Used by the worker pool to take the
// cost of tearing down a large set off the event loop.
func (z *SortedSet) Release() {
	z.tree.Clear(false)
	z.byName = nil
}
