/*package tree implements the linear octree that partitions a 3D point set
for the FMM. The tree is not a pointer-chasing node graph: it owns flat,
sorted per-level key arrays plus key -> index maps, and the input points are
permuted into Morton order exactly once at construction. Two construction
modes exist: uniform (a complete tree of fixed depth, empty boxes included)
and adaptive (refine any leaf holding more than nCrit points, empty boxes
pruned).*/
package tree

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/phil-mansfield/gofmm/lib/morton"
)

// Mode tags the construction strategy of a Tree.
type Mode int

const (
	Uniform Mode = iota
	Adaptive
)

// Tree is a linear octree over a point set.
type Tree struct {
	Domain morton.Domain
	Mode   Mode
	// Depth is the deepest level with a box. In uniform mode every leaf is at
	// this level; in adaptive mode leaves are at heterogeneous levels <= it.
	Depth int

	// Points are the input points permuted into Morton order.
	// GlobalIndices[i] is the caller's index of Points[i], used to report
	// results in the caller's original ordering.
	Points        [][3]float64
	GlobalIndices []int

	// Leaves (sorted) and the half-open point range owned by each. Ranges
	// are disjoint and their union covers [0, len(Points)).
	Leaves     []morton.Key
	LeafRanges [][2]int

	levels      [][]morton.Key
	levelIndex  []map[morton.Key]int
	levelOffset []int
	allKeys     []morton.Key
	keyIndex    map[morton.Key]int
	leafIndex   map[morton.Key]int
}

// New builds a tree from points. If adaptive is true, nCrit bounds the number
// of points per leaf and depth is ignored; otherwise depth fixes the uniform
// leaf level and nCrit is ignored.
func New(points [][3]float64, adaptive bool, nCrit, depth int) (*Tree, error) {
	if adaptive {
		return NewAdaptive(points, nCrit)
	}
	return NewUniform(points, depth)
}

// NewUniform builds a complete tree of the given depth. Every box at every
// level exists whether or not it holds points.
func NewUniform(points [][3]float64, depth int) (*Tree, error) {
	if depth < 1 || depth > morton.DeepestLevel {
		return nil, errors.Errorf(
			"uniform tree depth must be in [1, %d], got %d", morton.DeepestLevel, depth)
	}
	dom, err := morton.NewDomain(points)
	if err != nil {
		return nil, err
	}

	t := &Tree{Domain: dom, Mode: Uniform, Depth: depth}
	t.sortPoints(points, depth)

	// Complete key lists: level l holds all 8^l boxes.
	t.levels = make([][]morton.Key, depth+1)
	t.levels[0] = []morton.Key{morton.Root}
	for l := 0; l < depth; l++ {
		next := make([]morton.Key, 0, 8*len(t.levels[l]))
		for _, k := range t.levels[l] {
			children := k.Children()
			next = append(next, children[:]...)
		}
		t.levels[l+1] = next
	}

	t.Leaves = t.levels[depth]
	t.LeafRanges = make([][2]int, len(t.Leaves))
	pointKeys := make([]morton.Key, len(t.Points))
	for i, p := range t.Points {
		pointKeys[i] = morton.FromPoint(p, dom, depth)
	}
	for i, leaf := range t.Leaves {
		leaf := leaf
		lo := sort.Search(len(pointKeys), func(j int) bool { return pointKeys[j] >= leaf })
		hi := sort.Search(len(pointKeys), func(j int) bool { return pointKeys[j] > leaf })
		t.LeafRanges[i] = [2]int{lo, hi}
	}

	t.buildIndexes()
	return t, nil
}

// NewAdaptive builds a tree by refining any leaf with more than nCrit points
// until every leaf holds at most nCrit (or sits at the deepest encodable
// level). Boxes that would hold no points are pruned.
func NewAdaptive(points [][3]float64, nCrit int) (*Tree, error) {
	if nCrit < 1 {
		return nil, errors.Errorf("adaptive tree nCrit must be positive, got %d", nCrit)
	}
	dom, err := morton.NewDomain(points)
	if err != nil {
		return nil, err
	}

	t := &Tree{Domain: dom, Mode: Adaptive}
	t.sortPoints(points, morton.DeepestLevel)

	pointKeys := make([]morton.Key, len(t.Points))
	for i, p := range t.Points {
		pointKeys[i] = morton.FromPoint(p, dom, morton.DeepestLevel)
	}

	type box struct {
		key    morton.Key
		lo, hi int
	}
	stack := []box{{morton.Root, 0, len(t.Points)}}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.hi-b.lo <= nCrit || b.key.Level() == morton.DeepestLevel {
			t.Leaves = append(t.Leaves, b.key)
			t.LeafRanges = append(t.LeafRanges, [2]int{b.lo, b.hi})
			continue
		}

		// Morton order keeps each child's points contiguous within the
		// parent's range, so the split is just 7 binary searches.
		children := b.key.Children()
		lo := b.lo
		for oct := 0; oct < 8; oct++ {
			hi := b.hi
			if oct < 7 {
				bound := morton.NewKey(children[oct+1].Anchor(), morton.DeepestLevel)
				hi = lo + sort.Search(b.hi-lo, func(j int) bool {
					return pointKeys[lo+j] >= bound
				})
			}
			if hi > lo {
				stack = append(stack, box{children[oct], lo, hi})
			}
			lo = hi
		}
	}

	// The stack pops children in reverse, so restore key order.
	order := make([]int, len(t.Leaves))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return morton.Less(t.Leaves[order[i]], t.Leaves[order[j]])
	})
	leaves := make([]morton.Key, len(t.Leaves))
	ranges := make([][2]int, len(t.Leaves))
	for i, j := range order {
		leaves[i], ranges[i] = t.Leaves[j], t.LeafRanges[j]
	}
	t.Leaves, t.LeafRanges = leaves, ranges

	// Levels hold every leaf and every ancestor of a leaf.
	for _, leaf := range t.Leaves {
		if leaf.Level() > t.Depth {
			t.Depth = leaf.Level()
		}
	}
	levelSets := make([]map[morton.Key]bool, t.Depth+1)
	for l := range levelSets {
		levelSets[l] = map[morton.Key]bool{}
	}
	for _, leaf := range t.Leaves {
		k := leaf
		levelSets[k.Level()][k] = true
		for k.Level() > 0 {
			k = k.Parent()
			levelSets[k.Level()][k] = true
		}
	}
	t.levels = make([][]morton.Key, t.Depth+1)
	for l := range t.levels {
		keys := make([]morton.Key, 0, len(levelSets[l]))
		for k := range levelSets[l] {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		t.levels[l] = keys
	}

	t.buildIndexes()
	return t, nil
}

// sortPoints permutes points into the Morton order of their level keys and
// records the permutation.
func (t *Tree) sortPoints(points [][3]float64, level int) {
	keys := make([]morton.Key, len(points))
	for i, p := range points {
		keys[i] = morton.FromPoint(p, t.Domain, level)
	}
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })

	t.Points = make([][3]float64, len(points))
	t.GlobalIndices = make([]int, len(points))
	for i, j := range order {
		t.Points[i] = points[j]
		t.GlobalIndices[i] = j
	}
}

func (t *Tree) buildIndexes() {
	t.levelIndex = make([]map[morton.Key]int, len(t.levels))
	t.levelOffset = make([]int, len(t.levels))
	t.keyIndex = map[morton.Key]int{}

	offset := 0
	for l, keys := range t.levels {
		t.levelOffset[l] = offset
		t.levelIndex[l] = make(map[morton.Key]int, len(keys))
		for i, k := range keys {
			t.levelIndex[l][k] = i
			t.keyIndex[k] = offset + i
		}
		t.allKeys = append(t.allKeys, keys...)
		offset += len(keys)
	}

	t.leafIndex = make(map[morton.Key]int, len(t.Leaves))
	for i, leaf := range t.Leaves {
		t.leafIndex[leaf] = i
	}
}

// Keys returns the sorted keys at the given level (nil past the tree depth).
func (t *Tree) Keys(level int) []morton.Key {
	if level < 0 || level >= len(t.levels) {
		return nil
	}
	return t.levels[level]
}

// NumKeys returns the number of boxes across all levels.
func (t *Tree) NumKeys() int { return len(t.allKeys) }

// AllKeys returns every key in level-major, Morton-sorted order, matching the
// layout of the expansion coefficient storage.
func (t *Tree) AllKeys() []morton.Key { return t.allKeys }

// GlobalIndex returns the position of key in AllKeys.
func (t *Tree) GlobalIndex(key morton.Key) (int, bool) {
	i, ok := t.keyIndex[key]
	return i, ok
}

// LevelIndex returns the position of key within its level's sorted key list.
func (t *Tree) LevelIndex(level int, key morton.Key) (int, bool) {
	if level < 0 || level >= len(t.levelIndex) {
		return 0, false
	}
	i, ok := t.levelIndex[level][key]
	return i, ok
}

// LevelOffset returns the position in AllKeys of the first key at level.
func (t *Tree) LevelOffset(level int) int { return t.levelOffset[level] }

// LeafIndex returns the position of key in Leaves.
func (t *Tree) LeafIndex(key morton.Key) (int, bool) {
	i, ok := t.leafIndex[key]
	return i, ok
}
