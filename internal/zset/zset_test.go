package zset

import "testing"

func TestInsertAddVsUpdate(t *testing.T) {
	z := New()
	if added := z.Insert("alice", 1); !added {
		t.Fatalf("expected add for new member")
	}
	if added := z.Insert("bob", 2); !added {
		t.Fatalf("expected add for new member")
	}
	if added := z.Insert("alice", 1.5); added {
		t.Fatalf("expected update, not add, for existing member")
	}
	if n := z.Lookup("alice"); n == nil || n.Score != 1.5 {
		t.Fatalf("alice score = %v, want 1.5", n)
	}
	if z.Len() != 2 {
		t.Fatalf("len = %d, want 2", z.Len())
	}
}

func TestInsertSameScoreStillCountsUpdated(t *testing.T) {
	z := New()
	z.Insert("a", 1)
	if added := z.Insert("a", 1); added {
		t.Fatalf("re-inserting same score should be an update, not add")
	}
}

func TestDeleteRemovesFromBothIndexes(t *testing.T) {
	z := New()
	z.Insert("a", 1)
	n := z.Lookup("a")
	z.Delete(n)
	if z.Lookup("a") != nil {
		t.Fatalf("expected a to be gone from hash index")
	}
	if z.Len() != 0 {
		t.Fatalf("len = %d, want 0", z.Len())
	}
}

func TestSeekGEAndOffsetAscendingOrder(t *testing.T) {
	z := New()
	z.Insert("bob", 2)
	z.Insert("alice", 1)
	z.Insert("carol", 1.5)
	z.Insert("dave", 2)

	first := z.SeekGE(-1e18, "")
	if first == nil || first.Name != "alice" {
		t.Fatalf("first = %v, want alice", first)
	}

	var names []string
	cur := first
	for cur != nil {
		names = append(names, cur.Name)
		cur = Offset(cur, 1)
	}
	want := []string{"alice", "carol", "bob", "dave"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestSeekGENoneFound(t *testing.T) {
	z := New()
	z.Insert("a", 1)
	if n := z.SeekGE(100, ""); n != nil {
		t.Fatalf("expected nil past the end, got %v", n)
	}
}

func TestDeleteNodeWithTwoChildrenPreservesSurvivorIdentity(t *testing.T) {
	z := New()
	names := []string{"d", "b", "f", "a", "c", "e", "g"}
	for i, n := range names {
		z.Insert(n, float64(i))
	}

	mid := z.Lookup("b")
	if mid == nil || mid.tree.Left() == nil || mid.tree.Right() == nil {
		t.Fatalf("expected b to have two children before delete")
	}
	z.Delete(mid)

	for _, want := range []string{"d", "f", "a", "c", "e", "g"} {
		n := z.Lookup(want)
		if n == nil {
			t.Fatalf("member %q missing after deleting an unrelated node", want)
		}
		if n.Name != want {
			t.Fatalf("member stored under name %q reports Name %q", want, n.Name)
		}
	}
	if z.Lookup("b") != nil {
		t.Fatalf("deleted member b should no longer be found")
	}

	var names2 []string
	cur := z.SeekGE(-1e18, "")
	for cur != nil {
		names2 = append(names2, cur.Name)
		cur = Offset(cur, 1)
	}
	want := []string{"d", "f", "a", "c", "e", "g"}
	if len(names2) != len(want) {
		t.Fatalf("inorder after delete = %v, want %v", names2, want)
	}
	for i := range want {
		if names2[i] != want[i] {
			t.Fatalf("inorder after delete = %v, want %v", names2, want)
		}
	}
}

func TestForEachVisitsAllMembers(t *testing.T) {
	z := New()
	names := []string{"a", "b", "c", "d"}
	for i, n := range names {
		z.Insert(n, float64(i))
	}
	seen := map[string]bool{}
	z.ForEach(func(n *Node) bool {
		seen[n.Name] = true
		return true
	})
	for _, n := range names {
		if !seen[n] {
			t.Fatalf("missing %s in ForEach", n)
		}
	}
}
