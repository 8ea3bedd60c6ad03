// Package store implements the primary key index (component G of the
// spec): the Entry value type, the progressive-rehash hash map of
// entries, the TTL expiration heap, and the per-command handlers.
package store

import (
	"loopkv/internal/hashmap"
	"loopkv/internal/minheap"
	"loopkv/internal/zset"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// ValueType tags which of an Entry's value fields is live.
type ValueType byte

const (
	TypeString ValueType = iota
	TypeSortedSet
)

// Entry is one key-value record: a key, a cached hash, a type tag,
// exactly one of {string value, sorted set}, and a TTL heap slot index
// (minheap.NoIndex when the key has no TTL).
type Entry struct {
	Key     string
	hash    uint64
	Type    ValueType
	Str     string
	ZSet    *zset.ZSet
	heapIdx int
}

func fnv1a(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func eqKey(key string) func(*Entry) bool {
	return func(e *Entry) bool { return e.Key == key }
}

// Store is the primary key index plus the TTL heap that tracks a
// subset of its entries. One Store instance backs exactly one process
// (or, in a multi-db deployment, one logical database).
type Store struct {
	data    hashmap.Map[*Entry]
	ttl     minheap.Heap[*Entry]
	keysIdx *btree.BTreeG[string]
	log     *zap.SugaredLogger
}

// New constructs an empty Store. log may be nil, in which case warnings
// about stale heap references are dropped instead of logged.
func New(log *zap.SugaredLogger) *Store {
	return &Store{
		log:     log,
		keysIdx: btree.NewBTreeG[string](func(a, b string) bool { return a < b }),
	}
}

// Len reports the number of live entries.
func (s *Store) Len() int { return s.data.Len() }

// lookup returns the entry for key, or nil.
func (s *Store) lookup(key string) *Entry {
	e, _ := s.data.Lookup(fnv1a(key), eqKey(key))
	return e
}

// insert adds a fresh entry, with no TTL, to the primary index and the
// auxiliary sorted key index (kept for the `keys` command's
// deterministic ordering, adapted from the teacher's allKeys btree).
func (s *Store) insert(e *Entry) {
	e.hash = fnv1a(e.Key)
	e.heapIdx = minheap.NoIndex
	s.data.Insert(e.hash, e)
	s.keysIdx.Set(e.Key)
}

// remove deletes e from every index it participates in: the primary
// hash map, the TTL heap (if it has a slot), and the key-ordering
// btree. It does not touch the caller's reference to e.
func (s *Store) remove(e *Entry) {
	s.data.Delete(e.hash, eqKey(e.Key))
	if e.heapIdx != minheap.NoIndex {
		s.ttl.Delete(e.heapIdx)
		e.heapIdx = minheap.NoIndex
	}
	s.keysIdx.Delete(e.Key)
}

// setTTL implements entry_set_ttl from spec §4.G: negative ms clears
// any existing heap slot (the entry itself survives — see DESIGN.md on
// spec.md Open Question 2); non-negative ms computes an absolute
// deadline and upserts it into the heap at the entry's current slot
// (minheap.NoIndex meaning "append").
func (s *Store) setTTL(e *Entry, ms int64, nowMs int64) {
	if ms < 0 {
		if e.heapIdx != minheap.NoIndex {
			s.ttl.Delete(e.heapIdx)
			e.heapIdx = minheap.NoIndex
		}
		return
	}
	expiresAt := uint64(nowMs + ms)
	s.ttl.Upsert(e.heapIdx, minheap.Item[*Entry]{Val: expiresAt, Ref: &e.heapIdx, Value: e})
}

// NextExpiration returns the earliest TTL deadline across all entries
// and whether one exists, for the event loop's timer computation.
func (s *Store) NextExpiration() (uint64, bool) {
	top := s.ttl.Peek()
	if top == nil {
		return 0, false
	}
	return top.Val, true
}

// ExpireDue removes every entry whose TTL deadline is <= nowMs, up to
// maxWork removals, so a single call can never starve the event loop's
// I/O handling (spec §4.J, K_MAX_WORKS). Returns the number removed.
func (s *Store) ExpireDue(nowMs int64, maxWork int) int {
	removed := 0
	for removed < maxWork {
		top := s.ttl.Peek()
		if top == nil || top.Val > uint64(nowMs) {
			break
		}
		e := top.Value
		if _, ok := s.data.Lookup(e.hash, eqKey(e.Key)); !ok {
			// Stale heap entry: an earlier explicit delete forgot to
			// clear the heap slot. Warn and free it, per spec §4.J.
			if s.log != nil {
				s.log.Warnf("stale ttl heap entry for key %q, freeing without a matching store entry", e.Key)
			}
			s.ttl.Delete(e.heapIdx)
			removed++
			continue
		}
		s.remove(e)
		removed++
	}
	return removed
}
