// Package zset implements a sorted set: a multi-index over (score, name)
// members, unique by name, supporting O(log n) point lookup by name,
// range seek by (score, name), rank-offset traversal, insertion and
// deletion. It composes internal/avltree (keyed by (score, name)) with
// internal/hashmap (keyed by name).
//
// The C original recovers a ZNode from its embedded AVLNode by
// subtracting a fixed member offset (container_of). Go has no portable
// equivalent, so instead the tree is parameterized directly on *Node:
// each tree node's Key field IS the owning *Node pointer, and the
// ordering comparator reads Score/Name off of it. Recovery is then
// just reading the Key back — no offset arithmetic, no side lookup.
package zset

import (
	"loopkv/internal/avltree"
	"loopkv/internal/hashmap"
)

// Node is one sorted-set member.
type Node struct {
	tree  avltree.Node[*Node]
	Name  string
	Score float64
}

func less(a, b *Node) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return len(a.Name) < len(b.Name)
}

// ZSet owns a balanced tree keyed by (score, name, len) and a hash
// index keyed by the FNV-1a hash of name.
type ZSet struct {
	tree   *avltree.Tree[*Node]
	byName hashmap.Map[*Node]
}

// New constructs an empty sorted set.
func New() *ZSet {
	return &ZSet{tree: avltree.New(less)}
}

// Len reports the number of members.
func (z *ZSet) Len() int { return z.byName.Len() }

func fnv1a(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func eqName(name string) func(*Node) bool {
	return func(n *Node) bool { return n.Name == name }
}

// Lookup finds a member by name.
func (z *ZSet) Lookup(name string) *Node {
	n, _ := z.byName.Lookup(fnv1a(name), eqName(name))
	return n
}

// Insert adds name/score, or updates score if name already exists and
// the score differs. Returns true if a new member was added, false if
// an existing member was found (whether or not its score changed),
// matching the zadd "added vs updated" distinction in spec §4.G.
func (z *ZSet) Insert(name string, score float64) bool {
	if existing := z.Lookup(name); existing != nil {
		if existing.Score != score {
			z.tree.Delete(&existing.tree)
			existing.Score = score
			existing.tree = avltree.Node[*Node]{Key: existing}
			z.tree.Insert(&existing.tree)
		}
		return false
	}
	n := &Node{Name: name, Score: score}
	n.tree = avltree.Node[*Node]{Key: n}
	z.tree.Insert(&n.tree)
	z.byName.Insert(fnv1a(name), n)
	return true
}

// Delete removes node from both indexes.
func (z *ZSet) Delete(node *Node) {
	z.tree.Delete(&node.tree)
	z.byName.Delete(fnv1a(node.Name), eqName(node.Name))
}

// SeekGE returns the smallest member whose (score, name) is >= the
// given (score, name), or nil if none.
func (z *ZSet) SeekGE(score float64, name string) *Node {
	probe := &Node{Score: score, Name: name}
	tn := z.tree.SeekGE(probe)
	if tn == nil {
		return nil
	}
	return tn.Key
}

// Offset returns the member k positions away from node in ascending
// (score, name) order, or nil if that position is outside the set.
func Offset(node *Node, k int64) *Node {
	if node == nil {
		return nil
	}
	tn := avltree.Offset(&node.tree, k)
	if tn == nil {
		return nil
	}
	return tn.Key
}

// Clear removes every member, resetting both indexes.
func (z *ZSet) Clear() {
	*z = *New()
}

// ForEach visits every member; stops early if fn returns false.
func (z *ZSet) ForEach(fn func(*Node) bool) {
	z.byName.ForEach(fn)
}
