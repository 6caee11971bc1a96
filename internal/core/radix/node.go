package radix

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"otterlive/internal/errs"
)

type nodeID int32

const (
	noNode nodeID = -1
	rootID nodeID = 0
)

// node is one arena slot. parent is a plain index into the arena, so the
// child/parent links never form an ownership cycle.
type node struct {
	label    []rune
	postings *roaring.Bitmap
	children []nodeID
	parent   nodeID
	live     bool
}

func (n *node) hasValue() bool {
	return n.postings != nil && !n.postings.IsEmpty()
}

func (ix *Index) at(id nodeID) *node {
	return &ix.nodes[id]
}

func (ix *Index) alloc(label []rune, postings *roaring.Bitmap, parent nodeID) nodeID {
	n := node{
		label:    cloneRunes(label),
		postings: postings,
		parent:   parent,
		live:     true,
	}
	if k := len(ix.free); k > 0 {
		id := ix.free[k-1]
		ix.free = ix.free[:k-1]
		ix.nodes[id] = n
		return id
	}
	ix.nodes = append(ix.nodes, n)
	return nodeID(len(ix.nodes) - 1)
}

func (ix *Index) release(id nodeID) {
	ix.nodes[id] = node{parent: noNode}
	ix.free = append(ix.free, id)
}

// childIndex binary-searches parent's children for first rune r. It returns
// the slot where r is or would be inserted.
func (ix *Index) childIndex(parent nodeID, r rune) (int, bool) {
	kids := ix.at(parent).children
	i := sort.Search(len(kids), func(i int) bool {
		return ix.at(kids[i]).label[0] >= r
	})
	return i, i < len(kids) && ix.at(kids[i]).label[0] == r
}

func (ix *Index) insertChild(parent nodeID, slot int, child nodeID) {
	p := ix.at(parent)
	r := ix.at(child).label[0]
	if slot > 0 && ix.at(p.children[slot-1]).label[0] >= r {
		errs.Invariant("insert", "sibling order broken before %q", r)
	}
	if slot < len(p.children) && ix.at(p.children[slot]).label[0] <= r {
		errs.Invariant("insert", "duplicate first rune %q among siblings", r)
	}
	p.children = append(p.children, noNode)
	copy(p.children[slot+1:], p.children[slot:])
	p.children[slot] = child
}

// replaceChild swaps the slot holding old for repl. repl must start with the
// same rune, which keeps the sibling order intact.
func (ix *Index) replaceChild(parent nodeID, old nodeID, repl nodeID) {
	p := ix.at(parent)
	for i, c := range p.children {
		if c == old {
			p.children[i] = repl
			ix.at(repl).parent = parent
			return
		}
	}
	errs.Invariant("replace", "node %d is not a child of %d", old, parent)
}

func (ix *Index) removeChild(parent nodeID, child nodeID) {
	p := ix.at(parent)
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
	errs.Invariant("remove", "node %d is not a child of %d", child, parent)
}

// tokenOf rebuilds the key of id by walking parent links up to the root.
func (ix *Index) tokenOf(id nodeID) string {
	var parts [][]rune
	size := 0
	for cur := id; cur != rootID && cur != noNode; cur = ix.at(cur).parent {
		parts = append(parts, ix.at(cur).label)
		size += len(ix.at(cur).label)
	}
	out := make([]rune, 0, size)
	for i := len(parts) - 1; i >= 0; i-- {
		out = append(out, parts[i]...)
	}
	return string(out)
}

func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func cloneRunes(r []rune) []rune {
	if len(r) == 0 {
		return nil
	}
	out := make([]rune, len(r))
	copy(out, r)
	return out
}

func concatRunes(a, b []rune) []rune {
	out := make([]rune, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func singleton(docID int) *roaring.Bitmap {
	return roaring.BitmapOf(uint32(docID))
}
