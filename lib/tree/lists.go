package tree

/* lists.go contains the interaction lists of the adaptive FMM. For uniform
trees the W and X lists are always empty and U degenerates to the same-level
neighbors, so the pass code does not need to distinguish the two modes. */

import (
	"github.com/phil-mansfield/gofmm/lib/morton"
)

// VList returns the same-level boxes handled by M2L: children of the parent's
// neighbors that exist in the tree and are not adjacent to key. Empty below
// level 2, where no box is well-separated from another.
func (t *Tree) VList(key morton.Key) []morton.Key {
	level := key.Level()
	if level < 2 {
		return nil
	}

	var out []morton.Key
	for _, pn := range key.Parent().Neighbors() {
		for _, c := range pn.Children() {
			if _, ok := t.LevelIndex(level, c); !ok {
				continue
			}
			if !key.IsAdjacent(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// UList returns the leaves whose points interact with leaf's points directly
// (P2P): leaf itself plus every adjacent leaf at any level.
func (t *Tree) UList(leaf morton.Key) []morton.Key {
	u, _ := t.nearField(leaf)
	return u
}

// WList returns the boxes whose multipole expansions are evaluated directly
// at leaf's points (M2P): descendants of leaf's neighbors whose parent is
// adjacent to leaf but which are not adjacent themselves.
func (t *Tree) WList(leaf morton.Key) []morton.Key {
	_, w := t.nearField(leaf)
	return w
}

// nearField walks the neighborhood of a leaf once and splits it into the U
// and W lists. Neighbors missing from the tree are either empty space
// (skipped) or covered by a coarser leaf (found by walking up).
func (t *Tree) nearField(leaf morton.Key) (u, w []morton.Key) {
	u = append(u, leaf)
	seen := map[morton.Key]bool{leaf: true}

	for _, n := range leaf.Neighbors() {
		if _, ok := t.LeafIndex(n); ok {
			if !seen[n] {
				seen[n] = true
				u = append(u, n)
			}
			continue
		}

		if _, ok := t.LevelIndex(n.Level(), n); ok {
			// Subdivided neighbor: descend. Children adjacent to the leaf
			// keep descending until a leaf is hit; the first non-adjacent
			// box on the way down belongs to W.
			stack := []morton.Key{n}
			for len(stack) > 0 {
				b := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, c := range b.Children() {
					if _, ok := t.LevelIndex(c.Level(), c); !ok {
						continue
					}
					if !leaf.IsAdjacent(c) {
						w = append(w, c)
						continue
					}
					if _, ok := t.LeafIndex(c); ok {
						if !seen[c] {
							seen[c] = true
							u = append(u, c)
						}
					} else {
						stack = append(stack, c)
					}
				}
			}
			continue
		}

		// Missing neighbor: the region is either empty or owned by a coarser
		// leaf containing it.
		a := n
		for a.Level() > 0 {
			a = a.Parent()
			if _, ok := t.LeafIndex(a); ok {
				if !seen[a] {
					seen[a] = true
					u = append(u, a)
				}
				break
			}
			if _, ok := t.LevelIndex(a.Level(), a); ok {
				break
			}
		}
	}
	return u, w
}

// XList returns the coarser leaves whose points contribute directly to key's
// local expansion (P2L): leaves adjacent to key's parent but not to key. It
// is the dual of the W list.
func (t *Tree) XList(key morton.Key) []morton.Key {
	level := key.Level()
	if level < 2 {
		return nil
	}

	var out []morton.Key
	seen := map[morton.Key]bool{}
	for _, n := range key.Parent().Neighbors() {
		a := n
		for {
			if _, ok := t.LeafIndex(a); ok {
				if !seen[a] && !key.IsAdjacent(a) && !a.IsAncestor(key) {
					seen[a] = true
					out = append(out, a)
				}
				break
			}
			if _, ok := t.LevelIndex(a.Level(), a); ok {
				// Subdivided box: its leaves are at key's level or finer and
				// are handled by the U, V, or W lists instead.
				break
			}
			if a.Level() == 0 {
				break
			}
			a = a.Parent()
		}
	}
	return out
}
