// Package minheap implements an array-backed binary min-heap whose
// items carry a back-reference to their owner's index field, so the
// owner always knows its current heap slot and can be updated or
// deleted at an arbitrary position in O(log n).
package minheap

// Item is one heap entry: an absolute expiration timestamp (or any
// other uint64 ordering key) plus the payload and a pointer to the
// int field on the owner that should track this item's index.
type Item[T any] struct {
	Val   uint64
	Ref   *int
	Value T
}

// NoIndex is the sentinel position passed to Upsert to mean "this item
// has no heap slot yet, append it". It must never collide with a real
// slice index, so it is deliberately far larger than any heap will grow.
const NoIndex = int(^uint(0) >> 1)

// Heap is a min-heap ordered by Item.Val.
type Heap[T any] struct {
	items []Item[T]
}

// Len returns the number of items in the heap.
func (h *Heap[T]) Len() int { return len(h.items) }

// Peek returns a pointer to the root item, or nil if the heap is empty.
func (h *Heap[T]) Peek() *Item[T] {
	if len(h.items) == 0 {
		return nil
	}
	return &h.items[0]
}

// At returns a pointer to the item at pos. pos must be in range.
func (h *Heap[T]) At(pos int) *Item[T] { return &h.items[pos] }

func parentIdx(pos int) int { return (pos+1)/2 - 1 }
func leftIdx(pos int) int   { return pos*2 + 1 }
func rightIdx(pos int) int  { return pos*2 + 2 }

func (h *Heap[T]) siftUp(pos int) {
	tmp := h.items[pos]
	for pos > 0 && h.items[parentIdx(pos)].Val > tmp.Val {
		p := parentIdx(pos)
		h.items[pos] = h.items[p]
		*h.items[pos].Ref = pos
		pos = p
	}
	h.items[pos] = tmp
	*h.items[pos].Ref = pos
}

func (h *Heap[T]) siftDown(pos int) {
	tmp := h.items[pos]
	n := len(h.items)
	for {
		l, r := leftIdx(pos), rightIdx(pos)
		smallest := pos
		smallestVal := tmp.Val
		if l < n && h.items[l].Val < smallestVal {
			smallest = l
			smallestVal = h.items[l].Val
		}
		if r < n && h.items[r].Val < smallestVal {
			smallest = r
		}
		if smallest == pos {
			break
		}
		h.items[pos] = h.items[smallest]
		*h.items[pos].Ref = pos
		pos = smallest
	}
	h.items[pos] = tmp
	*h.items[pos].Ref = pos
}

// update rebalances around pos: tries sifting up first, falls through
// to sifting down if the parent isn't violated.
func (h *Heap[T]) update(pos int) {
	if pos > 0 && h.items[parentIdx(pos)].Val > h.items[pos].Val {
		h.siftUp(pos)
	} else {
		h.siftDown(pos)
	}
}

// Upsert overwrites the item at pos if pos is within range, or appends
// it otherwise, then writes the final index back through item.Ref and
// restores the heap property.
func (h *Heap[T]) Upsert(pos int, item Item[T]) {
	if pos < len(h.items) {
		h.items[pos] = item
	} else {
		pos = len(h.items)
		h.items = append(h.items, item)
	}
	*h.items[pos].Ref = pos
	h.update(pos)
}

// Delete removes the item at pos, swapping in the last item and
// restoring the heap property.
func (h *Heap[T]) Delete(pos int) {
	last := len(h.items) - 1
	h.items[pos] = h.items[last]
	h.items = h.items[:last]
	if pos < len(h.items) {
		*h.items[pos].Ref = pos
		h.update(pos)
	}
}
