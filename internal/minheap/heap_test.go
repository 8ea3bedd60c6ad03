package minheap

import (
	"math/rand"
	"testing"
)

func checkHeapInvariant(t *testing.T, h *Heap[string]) {
	t.Helper()
	for i := 0; i < h.Len(); i++ {
		if *h.At(i).Ref != i {
			t.Fatalf("item %d back-reference = %d, want %d", i, *h.At(i).Ref, i)
		}
		p := parentIdx(i)
		if i > 0 && h.At(p).Val > h.At(i).Val {
			t.Fatalf("heap property violated at %d: parent %d > child %d", i, h.At(p).Val, h.At(i).Val)
		}
	}
}

func TestUpsertAppendAndHeapOrder(t *testing.T) {
	var h Heap[string]
	refs := make([]int, 6)
	vals := []uint64{50, 10, 40, 20, 60, 5}
	for i, v := range vals {
		refs[i] = NoIndex
		h.Upsert(refs[i], Item[string]{Val: v, Ref: &refs[i], Value: "x"})
		checkHeapInvariant(t, &h)
	}
	if h.Peek().Val != 5 {
		t.Fatalf("root = %d, want 5 (min)", h.Peek().Val)
	}
}

func TestUpsertInPlaceUpdate(t *testing.T) {
	var h Heap[string]
	refs := make([]int, 4)
	vals := []uint64{100, 50, 200, 10}
	for i, v := range vals {
		refs[i] = NoIndex
		h.Upsert(refs[i], Item[string]{Val: v, Ref: &refs[i], Value: "x"})
	}
	checkHeapInvariant(t, &h)
	// lower the value of the item currently tracked by refs[0]
	pos := refs[0]
	h.Upsert(pos, Item[string]{Val: 1, Ref: &refs[0], Value: "x"})
	checkHeapInvariant(t, &h)
	if h.Peek().Val != 1 {
		t.Fatalf("root = %d, want 1", h.Peek().Val)
	}
}

func TestDeleteMaintainsInvariant(t *testing.T) {
	var h Heap[int]
	n := 200
	refs := make([]int, n)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < n; i++ {
		refs[i] = NoIndex
		h.Upsert(refs[i], Item[int]{Val: uint64(r.Intn(100000)), Ref: &refs[i], Value: i})
	}
	idxOf := func(val int) int {
		for i := 0; i < h.Len(); i++ {
			if h.At(i).Value == val {
				return i
			}
		}
		return -1
	}
	order := r.Perm(n)
	for _, v := range order {
		pos := idxOf(v)
		if pos < 0 {
			t.Fatalf("value %d not found before delete", v)
		}
		h.Delete(pos)
		if h.Len() > 0 {
			checkHeapInvariantInt(t, &h)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("len = %d, want 0", h.Len())
	}
}

func checkHeapInvariantInt(t *testing.T, h *Heap[int]) {
	t.Helper()
	for i := 0; i < h.Len(); i++ {
		if *h.At(i).Ref != i {
			t.Fatalf("item %d back-reference = %d, want %d", i, *h.At(i).Ref, i)
		}
		p := parentIdx(i)
		if i > 0 && h.At(p).Val > h.At(i).Val {
			t.Fatalf("heap property violated at %d", i)
		}
	}
}

func TestPopInOrderIsSorted(t *testing.T) {
	var h Heap[int]
	n := 100
	refs := make([]int, n)
	r := rand.New(rand.NewSource(3))
	for i := 0; i < n; i++ {
		refs[i] = NoIndex
		h.Upsert(refs[i], Item[int]{Val: uint64(r.Intn(1000)), Ref: &refs[i], Value: i})
	}
	prev := uint64(0)
	for h.Len() > 0 {
		top := *h.Peek()
		if top.Val < prev {
			t.Fatalf("pop order not ascending: %d after %d", top.Val, prev)
		}
		prev = top.Val
		h.Delete(0)
	}
}
