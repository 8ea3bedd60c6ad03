package hashmap

import (
	"fmt"
	"strconv"
	"testing"
)

func hashStr(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func eqStr(s string) func(string) bool {
	return func(v string) bool { return v == s }
}

func TestInsertLookupDelete(t *testing.T) {
	var m Map[string]
	m.Insert(hashStr("a"), "a")
	m.Insert(hashStr("b"), "b")

	if v, ok := m.Lookup(hashStr("a"), eqStr("a")); !ok || v != "a" {
		t.Fatalf("lookup a = %v, %v", v, ok)
	}
	if _, ok := m.Lookup(hashStr("z"), eqStr("z")); ok {
		t.Fatalf("lookup z should miss")
	}
	if v, ok := m.Delete(hashStr("a"), eqStr("a")); !ok || v != "a" {
		t.Fatalf("delete a = %v, %v", v, ok)
	}
	if _, ok := m.Lookup(hashStr("a"), eqStr("a")); ok {
		t.Fatalf("a should be gone")
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
}

func TestProgressiveRehashPreservesAllKeys(t *testing.T) {
	var m Map[int]
	const n = 5000
	for i := 0; i < n; i++ {
		h := uint64(i) * 2654435761
		m.Insert(h, i)
	}
	if m.Len() != n {
		t.Fatalf("len = %d, want %d", m.Len(), n)
	}
	for i := 0; i < n; i++ {
		h := uint64(i) * 2654435761
		v, ok := m.Lookup(h, func(x int) bool { return x == i })
		if !ok || v != i {
			t.Fatalf("lookup %d failed: %v %v", i, v, ok)
		}
	}
}

func TestMigrationCompletesEventually(t *testing.T) {
	var m Map[int]
	const n = 2000
	for i := 0; i < n; i++ {
		m.Insert(uint64(i), i)
	}
	// drive enough no-op operations to finish migrating
	for i := 0; i < 200; i++ {
		m.Lookup(uint64(i%n), func(x int) bool { return x == i%n })
	}
	if m.older.buckets != nil {
		t.Fatalf("expected migration to complete, older table still allocated with size %d", m.older.size)
	}
}

func TestDeleteDuringMigrationSearchesOlderFirst(t *testing.T) {
	var m Map[string]
	// 512 inserts trigger a rehash of 512 entries, more than one
	// RehashWork slice, so the migration is still in progress when the
	// deletes begin.
	for i := 0; i < 512; i++ {
		key := "k" + strconv.Itoa(i)
		m.Insert(hashStr(key), key)
	}
	if m.older.buckets == nil {
		t.Fatalf("expected a migration in progress before the deletes")
	}
	// delete every key: each should be found regardless of which table
	// currently holds it.
	for i := 0; i < 512; i++ {
		key := "k" + strconv.Itoa(i)
		if _, ok := m.Delete(hashStr(key), eqStr(key)); !ok {
			t.Fatalf("delete %s failed", key)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("len = %d, want 0", m.Len())
	}
}

func TestForEachVisitsAll(t *testing.T) {
	var m Map[string]
	want := map[string]bool{}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		m.Insert(hashStr(key), key)
		want[key] = true
	}
	got := map[string]bool{}
	m.ForEach(func(v string) bool {
		got[v] = true
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("visited %d keys, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("missing key %s", k)
		}
	}
}

func TestForEachEarlyStop(t *testing.T) {
	var m Map[int]
	for i := 0; i < 20; i++ {
		m.Insert(uint64(i), i)
	}
	count := 0
	m.ForEach(func(v int) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}
