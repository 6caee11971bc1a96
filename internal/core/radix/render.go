package radix

import (
	"fmt"
	"strconv"
	"strings"

	"otterlive/internal/errs"
)

// Render dumps the trie in pre-order, one node per line, two spaces of
// indent per level below the root. Nodes with postings carry them in
// braces, e.g.
//
//	FOO{1}
//	  BAR{2}
//
// The root itself is not printed; an empty index renders as "".
func (ix *Index) Render() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var b strings.Builder
	for _, c := range ix.at(rootID).children {
		ix.render(&b, c, 0)
	}
	return b.String()
}

func (ix *Index) render(b *strings.Builder, id nodeID, depth int) {
	n := ix.at(id)
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(string(n.label))
	if n.hasValue() {
		b.WriteByte('{')
		for i, d := range toInts(n.postings) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(d))
		}
		b.WriteByte('}')
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		ix.render(b, c, depth+1)
	}
}

// Verify checks the structural invariants of the whole trie and the key
// count. It returns an ErrInvariant error describing the first violation.
func (ix *Index) Verify() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	root := ix.at(rootID)
	if len(root.label) != 0 || root.postings != nil {
		return verifyErr("root must have an empty label and no postings")
	}

	keys := 0
	queue := []nodeID{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := ix.at(id)
		if !n.live {
			return verifyErr("node %d is reachable but released", id)
		}
		if n.hasValue() {
			keys++
		} else if n.postings != nil {
			return verifyErr("node %d keeps an empty postings set", id)
		}
		if id != rootID {
			if len(n.label) == 0 {
				return verifyErr("node %d has an empty label", id)
			}
			if !n.hasValue() && len(n.children) < 2 {
				return verifyErr("valueless node %q has %d children", ix.tokenOf(id), len(n.children))
			}
		}
		for i, c := range n.children {
			if len(ix.at(c).label) == 0 {
				return verifyErr("node %d has an empty label", c)
			}
			if ix.at(c).parent != id {
				return verifyErr("node %d has parent %d, expected %d", c, ix.at(c).parent, id)
			}
			if i > 0 && ix.at(n.children[i-1]).label[0] >= ix.at(c).label[0] {
				return verifyErr("children of %q are not strictly ascending", ix.tokenOf(id))
			}
		}
		queue = append(queue, n.children...)
	}
	if keys != ix.keys {
		return verifyErr("key count %d, counted %d", ix.keys, keys)
	}
	return nil
}

func verifyErr(format string, args ...any) error {
	return errs.E(errs.ErrInvariant, "verify", "", fmt.Errorf(format, args...))
}
