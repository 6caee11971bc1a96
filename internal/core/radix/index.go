// Package radix implements the compressed-trie inverted index.
//
// Each key (token) is spelled by the labels on the path from the root to a
// node; the node's postings hold the ids of the documents containing the
// token. Chains of single-child nodes without postings are merged into one
// multi-rune edge.
//
// Writers serialize on an exclusive lock. Readers take the shared lock, so a
// reader sees a mutation either completely or not at all. Lookups are cheap
// relative to the per-file I/O that feeds the writers.
package radix

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"otterlive/internal/errs"
)

type Index struct {
	mu    sync.RWMutex
	nodes []node
	free  []nodeID
	keys  int

	version atomic.Uint64
}

func New() *Index {
	ix := &Index{}
	ix.nodes = append(ix.nodes, node{parent: noNode, live: true})
	return ix
}

// Version changes after every mutation that altered the index.
func (ix *Index) Version() uint64 {
	return ix.version.Load()
}

// Size returns the number of keys, i.e. nodes with non-empty postings.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.keys
}

func (ix *Index) Insert(token string, docID int) error {
	if token == "" {
		return errs.Invalid("insert", "token is empty")
	}
	if err := checkDocID("insert", docID); err != nil {
		return err
	}
	key := []rune(token)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.insertLocked(key, docID) {
		ix.version.Add(1)
	}
	return nil
}

// insertLocked reports whether the index changed.
func (ix *Index) insertLocked(key []rune, docID int) bool {
	cur := rootID
	i := 0
	for {
		if i == len(key) {
			// Key consumed exactly at a node boundary.
			return ix.addPosting(cur, docID)
		}

		slot, found := ix.childIndex(cur, key[i])
		if !found {
			// End of an edge with a suffix left: hang a new leaf here.
			leaf := ix.alloc(key[i:], singleton(docID), cur)
			ix.insertChild(cur, slot, leaf)
			ix.keys++
			return true
		}

		child := ix.at(cur).children[slot]
		label := ix.at(child).label
		n := commonPrefix(label, key[i:])
		if n == len(label) {
			cur = child
			i += n
			continue
		}

		if i+n == len(key) {
			// Key ends mid-edge: the prefix becomes a node carrying docID,
			// the old remainder moves beneath it.
			mid := ix.alloc(label[:n], singleton(docID), cur)
			ix.at(child).label = cloneRunes(label[n:])
			ix.at(mid).children = []nodeID{child}
			ix.replaceChild(cur, child, mid)
			ix.at(child).parent = mid
			ix.keys++
			return true
		}

		// Diverges mid-edge: branch with the old remainder and a new leaf.
		mid := ix.alloc(label[:n], nil, cur)
		leaf := ix.alloc(key[i+n:], singleton(docID), mid)
		rest := cloneRunes(label[n:])
		ix.at(child).label = rest
		if rest[0] < key[i+n] {
			ix.at(mid).children = []nodeID{child, leaf}
		} else {
			ix.at(mid).children = []nodeID{leaf, child}
		}
		ix.replaceChild(cur, child, mid)
		ix.at(child).parent = mid
		ix.keys++
		return true
	}
}

func (ix *Index) addPosting(id nodeID, docID int) bool {
	n := ix.at(id)
	if n.postings == nil {
		n.postings = roaring.New()
	}
	if n.postings.IsEmpty() {
		ix.keys++
	}
	return n.postings.CheckedAdd(uint32(docID))
}

// Lookup returns the ids posted under token in ascending order, or nil.
func (ix *Index) Lookup(token string) []int {
	if token == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	id, ok := ix.find([]rune(token))
	if !ok || !ix.at(id).hasValue() {
		return nil
	}
	return toInts(ix.at(id).postings)
}

func (ix *Index) find(key []rune) (nodeID, bool) {
	cur := rootID
	i := 0
	for i < len(key) {
		slot, found := ix.childIndex(cur, key[i])
		if !found {
			return noNode, false
		}
		child := ix.at(cur).children[slot]
		label := ix.at(child).label
		if len(key)-i < len(label) || commonPrefix(label, key[i:]) != len(label) {
			return noNode, false
		}
		cur = child
		i += len(label)
	}
	return cur, cur != rootID
}

// TokensFor returns every token whose postings contain docID, sorted.
func (ix *Index) TokensFor(docID int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, id := range ix.scan(docID) {
		out = append(out, ix.tokenOf(id))
	}
	sort.Strings(out)
	return out
}

// scan walks the trie breadth-first and returns the nodes posting docID.
func (ix *Index) scan(docID int) []nodeID {
	if docID < 0 || docID > math.MaxUint32 {
		return nil
	}
	var hits []nodeID
	queue := []nodeID{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := ix.at(id)
		if n.postings != nil && n.postings.Contains(uint32(docID)) {
			hits = append(hits, id)
		}
		queue = append(queue, n.children...)
	}
	return hits
}

func (ix *Index) Remove(token string, docID int) error {
	if token == "" {
		return errs.Invalid("remove", "token is empty")
	}
	if docID < 0 || docID > math.MaxUint32 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.removeLocked([]rune(token), docID) {
		ix.version.Add(1)
	}
	return nil
}

func (ix *Index) removeLocked(key []rune, docID int) bool {
	id, ok := ix.find(key)
	if !ok {
		return false
	}
	n := ix.at(id)
	if n.postings == nil || !n.postings.CheckedRemove(uint32(docID)) {
		return false
	}
	if n.postings.IsEmpty() {
		n.postings = nil
		ix.keys--
		ix.settle(id)
	}
	return true
}

// RemoveAll drops docID from every key and returns how many keys lost it.
// Each pass rescans the whole trie; removal is rare next to inserts and
// lookups.
func (ix *Index) RemoveAll(docID int) int {
	if docID < 0 || docID > math.MaxUint32 {
		return 0
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for {
		hits := ix.scan(docID)
		if len(hits) == 0 {
			break
		}
		// Compaction recycles ids, so resolve tokens before touching anything.
		keys := make([][]rune, len(hits))
		for i, id := range hits {
			keys[i] = []rune(ix.tokenOf(id))
		}
		for _, key := range keys {
			if ix.removeLocked(key, docID) {
				removed++
			}
		}
	}
	if removed > 0 {
		ix.version.Add(1)
	}
	return removed
}

// settle restores the compaction invariant on id after it lost its
// postings or a child: a valueless leaf is unlinked (and its parent settled
// in turn), a valueless node with one child is merged into that child.
func (ix *Index) settle(id nodeID) {
	for id != rootID {
		n := ix.at(id)
		if n.hasValue() {
			return
		}
		switch len(n.children) {
		case 0:
			parent := n.parent
			ix.removeChild(parent, id)
			ix.release(id)
			id = parent
		case 1:
			ix.merge(id)
			return
		default:
			return
		}
	}
}

// merge folds the single child of id into id's slot under its parent.
func (ix *Index) merge(id nodeID) {
	n := ix.at(id)
	child := n.children[0]
	parent := n.parent
	c := ix.at(child)
	c.label = concatRunes(n.label, c.label)
	ix.replaceChild(parent, id, child)
	ix.release(id)
}

// Walk calls fn for every key in pre-order, siblings ascending. Returning
// false stops the walk.
func (ix *Index) Walk(fn func(token string, docs []int) bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.walk(rootID, nil, fn)
}

func (ix *Index) walk(id nodeID, prefix []rune, fn func(string, []int) bool) bool {
	n := ix.at(id)
	key := concatRunes(prefix, n.label)
	if n.hasValue() && !fn(string(key), toInts(n.postings)) {
		return false
	}
	for _, c := range n.children {
		if !ix.walk(c, key, fn) {
			return false
		}
	}
	return true
}

func checkDocID(op string, docID int) error {
	if docID < 0 || docID > math.MaxUint32 {
		return errs.Invalid(op, "document id %d out of range", docID)
	}
	return nil
}

func toInts(b *roaring.Bitmap) []int {
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
