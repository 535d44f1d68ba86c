/*package morton implements the integer encoding of octree cells used by the
linear octree: a key packs the cell's anchor (its lower corner, measured on
the lattice of the deepest supported level) together with the cell's level.
Parents, children, siblings, neighbors, and transfer vectors are all pure
functions of a key and a domain, so the octree never needs node pointers.*/
package morton

import (
	"fmt"
	"sort"
)

const (
	// DeepestLevel is the deepest level a key can encode. Anchors are stored
	// with 16 bits per axis, so refining past level 16 is impossible.
	DeepestLevel = 16

	// levelDisplacement is the number of low bits reserved for the level.
	// 3*16 anchor bits + 15 level bits fit in a uint64.
	levelDisplacement = 15
	levelMask         = (1 << levelDisplacement) - 1
)

// Key is one octree cell: 48 bits of interleaved anchor coordinates followed
// by 15 bits of level. Keys at the same level sort in Morton (z-curve) order,
// and all descendants of a cell form a contiguous run in that order.
type Key uint64

// NewKey encodes the cell at the given level whose anchor is expressed on the
// DeepestLevel lattice (i.e. each coordinate is a multiple of the cell side
// 2^(DeepestLevel-level)).
func NewKey(anchor [3]uint64, level int) Key {
	if level < 0 || level > DeepestLevel {
		panic(fmt.Sprintf("Internal error: level %d outside [0, %d].", level, DeepestLevel))
	}
	m := spreadBits(anchor[0])<<2 | spreadBits(anchor[1])<<1 | spreadBits(anchor[2])
	return Key(m<<levelDisplacement | uint64(level))
}

// FromPoint returns the key of the level-l cell containing p. Points outside
// the domain are clamped onto its boundary cells.
func FromPoint(p [3]float64, dom Domain, level int) Key {
	side := uint64(1) << uint(DeepestLevel-level)
	var anchor [3]uint64
	for d := 0; d < 3; d++ {
		x := (p[d] - dom.Origin[d]) / dom.Diameter[d] * float64(uint64(1)<<level)
		i := int64(x)
		if i < 0 {
			i = 0
		} else if i >= int64(1)<<level {
			i = int64(1)<<level - 1
		}
		anchor[d] = uint64(i) * side
	}
	return NewKey(anchor, level)
}

// Root is the level-0 key covering the whole domain.
const Root = Key(0)

// Level returns the key's octree level.
func (k Key) Level() int { return int(uint64(k) & levelMask) }

// Anchor returns the cell's lower corner on the DeepestLevel lattice.
func (k Key) Anchor() [3]uint64 {
	m := uint64(k) >> levelDisplacement
	return [3]uint64{compactBits(m >> 2), compactBits(m >> 1), compactBits(m)}
}

// Side returns the cell's side length on the DeepestLevel lattice.
func (k Key) Side() uint64 { return 1 << uint(DeepestLevel-k.Level()) }

// Parent returns the cell one level up that contains k.
func (k Key) Parent() Key {
	level := k.Level()
	if level == 0 {
		panic("Internal error: the root key has no parent.")
	}
	side := uint64(1) << uint(DeepestLevel-level+1)
	a := k.Anchor()
	for d := 0; d < 3; d++ {
		a[d] &^= side - 1
	}
	return NewKey(a, level-1)
}

// Octant returns k's position among its siblings, in the same order that
// Children returns them.
func (k Key) Octant() int {
	level := k.Level()
	if level == 0 {
		return 0
	}
	shift := uint(DeepestLevel - level)
	a := k.Anchor()
	return int((a[0]>>shift&1)<<2 | (a[1]>>shift&1)<<1 | a[2]>>shift&1)
}

// Children returns the 8 cells tessellating k at the next level, sorted in
// key order. Calling Children on a DeepestLevel key is an invariant
// violation: the encoding cannot express a deeper cell.
func (k Key) Children() [8]Key {
	level := k.Level()
	if level == DeepestLevel {
		panic("Internal error: cannot refine a key at the deepest encodable level.")
	}
	side := uint64(1) << uint(DeepestLevel-level-1)
	a := k.Anchor()

	var children [8]Key
	for oct := 0; oct < 8; oct++ {
		child := [3]uint64{
			a[0] + uint64(oct>>2&1)*side,
			a[1] + uint64(oct>>1&1)*side,
			a[2] + uint64(oct&1)*side,
		}
		children[oct] = NewKey(child, level+1)
	}
	return children
}

// Siblings returns the 8 cells (including k) sharing k's parent.
func (k Key) Siblings() [8]Key { return k.Parent().Children() }

// directions is the fixed enumeration of the 26 unit offsets to same-level
// neighbors. AllNeighbors and the FFT halo data both rely on this order, so
// it must never change.
var directions = func() [26][3]int64 {
	var dirs [26][3]int64
	i := 0
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				dirs[i] = [3]int64{dx, dy, dz}
				i++
			}
		}
	}
	return dirs
}()

// AllNeighbors returns the 26 same-level cells adjacent to k in the fixed
// direction order, with ok[i] = false where the neighbor would fall outside
// the domain.
func (k Key) AllNeighbors() (neighbors [26]Key, ok [26]bool) {
	level := k.Level()
	side := int64(k.Side())
	limit := int64(1) << DeepestLevel
	a := k.Anchor()

	for i, dir := range directions {
		valid := true
		var n [3]uint64
		for d := 0; d < 3; d++ {
			x := int64(a[d]) + dir[d]*side
			if x < 0 || x+side > limit {
				valid = false
				break
			}
			n[d] = uint64(x)
		}
		if !valid {
			continue
		}
		neighbors[i] = NewKey(n, level)
		ok[i] = true
	}
	return neighbors, ok
}

// Neighbors returns the same-level adjacent cells that exist within the
// domain, in direction order. Interior cells have 26, corner cells 7.
func (k Key) Neighbors() []Key {
	all, ok := k.AllNeighbors()
	out := make([]Key, 0, 26)
	for i := range all {
		if ok[i] {
			out = append(out, all[i])
		}
	}
	return out
}

// IsAncestor reports whether k is a strict ancestor of other.
func (k Key) IsAncestor(other Key) bool {
	if k.Level() >= other.Level() {
		return false
	}
	return other.ancestorAt(k.Level()) == k
}

func (k Key) ancestorAt(level int) Key {
	side := uint64(1) << uint(DeepestLevel-level)
	a := k.Anchor()
	for d := 0; d < 3; d++ {
		a[d] &^= side - 1
	}
	return NewKey(a, level)
}

// IsAdjacent reports whether the closed boxes of k and other touch or share
// boundary. Equal keys and ancestor/descendant pairs are not considered
// adjacent. The keys may be at different levels.
func (k Key) IsAdjacent(other Key) bool {
	if k == other || k.IsAncestor(other) || other.IsAncestor(k) {
		return false
	}
	ka, oa := k.Anchor(), other.Anchor()
	ks, os := int64(k.Side()), int64(other.Side())
	for d := 0; d < 3; d++ {
		if int64(ka[d]) > int64(oa[d])+os || int64(oa[d]) > int64(ka[d])+ks {
			return false
		}
	}
	return true
}

// FindTransferVector returns the offset from target to source in units of
// boxes at their (shared) level. Kernel homogeneity and translation
// invariance make this vector the identity of the M2L operator between the
// pair, so it is used to deduplicate operator precomputation.
func FindTransferVector(source, target Key) [3]int64 {
	if source.Level() != target.Level() {
		panic("Internal error: transfer vectors are only defined between keys at the same level.")
	}
	side := int64(source.Side())
	sa, ta := source.Anchor(), target.Anchor()
	return [3]int64{
		(int64(sa[0]) - int64(ta[0])) / side,
		(int64(sa[1]) - int64(ta[1])) / side,
		(int64(sa[2]) - int64(ta[2])) / side,
	}
}

// TransferHash maps a transfer vector to a unique integer usable as a map
// key. Components must lie in (-512, 512), which holds for every vector an
// interaction list can produce.
func TransferHash(v [3]int64) int64 {
	return (v[0]+512)<<20 | (v[1]+512)<<10 | (v[2] + 512)
}

// Centre returns the midpoint of k's box within dom.
func (k Key) Centre(dom Domain) [3]float64 {
	a := k.Anchor()
	side := k.Side()
	var c [3]float64
	for d := 0; d < 3; d++ {
		c[d] = dom.Origin[d] +
			dom.Diameter[d]*(float64(a[d])+float64(side)/2)/float64(uint64(1)<<DeepestLevel)
	}
	return c
}

// BoxDiameter returns the per-axis side lengths of k's box within dom.
func (k Key) BoxDiameter(dom Domain) [3]float64 {
	scale := float64(k.Side()) / float64(uint64(1)<<DeepestLevel)
	return [3]float64{
		dom.Diameter[0] * scale,
		dom.Diameter[1] * scale,
		dom.Diameter[2] * scale,
	}
}

// SortKeys sorts keys in place in (level, Morton) order.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })
}

// Less orders keys first by level, then by Morton position within the level.
func Less(a, b Key) bool {
	if a.Level() != b.Level() {
		return a.Level() < b.Level()
	}
	return a < b
}

// spreadBits dilates the low 16 bits of x so consecutive bits land three
// apart. Standard 3D Morton magic numbers (good to 21 bits).
func spreadBits(x uint64) uint64 {
	x &= 0xffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// compactBits inverts spreadBits.
func compactBits(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x | x>>2) & 0x10c30c30c30c30c3
	x = (x | x>>4) & 0x100f00f00f00f00f
	x = (x | x>>8) & 0x1f0000ff0000ff
	x = (x | x>>16) & 0x1f00000000ffff
	x = (x | x>>32) & 0xffff
	return x
}
