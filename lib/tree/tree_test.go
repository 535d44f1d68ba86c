package tree

import (
	"math/rand"
	"testing"

	"github.com/phil-mansfield/gofmm/lib/morton"
)

func randPoints(n int, seed int64) [][3]float64 {
	rng := rand.New(rand.NewSource(seed))
	points := make([][3]float64, n)
	for i := range points {
		points[i] = [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}
	return points
}

func TestNewUniform(t *testing.T) {
	points := randPoints(1000, 42)
	tr, err := NewUniform(points, 3)
	if err != nil {
		t.Fatalf("NewUniform failed: %s", err.Error())
	}

	if tr.Depth != 3 {
		t.Errorf("Expected depth 3, got %d.", tr.Depth)
	}
	if len(tr.Leaves) != 512 {
		t.Errorf("Expected 512 leaves, got %d.", len(tr.Leaves))
	}
	for level := 0; level <= 3; level++ {
		expected := 1 << uint(3*level)
		if len(tr.Keys(level)) != expected {
			t.Errorf("Expected %d keys at level %d, got %d.",
				expected, level, len(tr.Keys(level)))
		}
	}
	if tr.NumKeys() != 1+8+64+512 {
		t.Errorf("Expected %d keys in total, got %d.", 1+8+64+512, tr.NumKeys())
	}

	checkPointsAndRanges(t, tr)
}

func TestNewUniformBadDepth(t *testing.T) {
	points := randPoints(10, 42)
	for _, depth := range []int{0, -1, 17} {
		if _, err := NewUniform(points, depth); err == nil {
			t.Errorf("Expected an error for depth %d.", depth)
		}
	}
}

func TestNewAdaptive(t *testing.T) {
	points := randPoints(2000, 43)
	nCrit := 50
	tr, err := NewAdaptive(points, nCrit)
	if err != nil {
		t.Fatalf("NewAdaptive failed: %s", err.Error())
	}

	for i := range tr.Leaves {
		rng := tr.LeafRanges[i]
		if rng[1]-rng[0] > nCrit {
			t.Errorf("Leaf %d holds %d > %d points.", i, rng[1]-rng[0], nCrit)
		}
		if rng[1] == rng[0] {
			t.Errorf("Leaf %d is empty: adaptive trees prune empty boxes.", i)
		}
	}

	// Every ancestor of every leaf is in the tree.
	for _, leaf := range tr.Leaves {
		k := leaf
		for k.Level() > 0 {
			k = k.Parent()
			if _, ok := tr.GlobalIndex(k); !ok {
				t.Errorf("Ancestor %d of leaf %d is missing.", k, leaf)
			}
		}
	}

	checkPointsAndRanges(t, tr)
}

func TestNewAdaptiveBadNCrit(t *testing.T) {
	points := randPoints(10, 42)
	if _, err := NewAdaptive(points, 0); err == nil {
		t.Errorf("Expected an error for nCrit = 0.")
	}
}

func TestAdaptiveSinglePoint(t *testing.T) {
	tr, err := NewAdaptive([][3]float64{{0.5, 0.5, 0.5}}, 10)
	if err != nil {
		t.Fatalf("NewAdaptive failed: %s", err.Error())
	}
	if len(tr.Leaves) != 1 || tr.Leaves[0] != morton.Root {
		t.Errorf("Expected a single root leaf, got %d leaves.", len(tr.Leaves))
	}
}

// checkPointsAndRanges tests that the tree's points are a permutation of the
// input in Morton order and that the leaf ranges partition them.
func checkPointsAndRanges(t *testing.T, tr *Tree) {
	t.Helper()

	seen := make([]bool, len(tr.Points))
	for i := range tr.GlobalIndices {
		gi := tr.GlobalIndices[i]
		if seen[gi] {
			t.Fatalf("GlobalIndices maps two points to input index %d.", gi)
		}
		seen[gi] = true
	}

	covered := 0
	for i, leaf := range tr.Leaves {
		rng := tr.LeafRanges[i]
		covered += rng[1] - rng[0]
		for j := rng[0]; j < rng[1]; j++ {
			k := morton.FromPoint(tr.Points[j], tr.Domain, leaf.Level())
			if k != leaf {
				t.Fatalf("Point %d in the range of leaf %d maps to box %d.",
					j, leaf, k)
			}
		}
	}
	if covered != len(tr.Points) {
		t.Errorf("Leaf ranges cover %d of %d points.", covered, len(tr.Points))
	}
}

func TestVListUniform(t *testing.T) {
	points := randPoints(500, 44)
	tr, err := NewUniform(points, 3)
	if err != nil {
		t.Fatalf("NewUniform failed: %s", err.Error())
	}

	// Boxes above level 2 have no well-separated interactions.
	if got := tr.VList(morton.Root); got != nil {
		t.Errorf("Expected an empty V list for the root.")
	}
	for _, k := range tr.Keys(1) {
		if got := tr.VList(k); got != nil {
			t.Errorf("Expected an empty V list at level 1.")
		}
	}

	// An interior level-3 box of a complete tree has a 189-box V list.
	side := uint64(1) << uint(morton.DeepestLevel-3)
	interior := morton.NewKey([3]uint64{3 * side, 3 * side, 3 * side}, 3)
	v := tr.VList(interior)
	if len(v) != 189 {
		t.Errorf("Expected 189 V-list boxes for an interior box, got %d.", len(v))
	}
	for _, src := range v {
		if interior.IsAdjacent(src) {
			t.Errorf("V-list box %d is adjacent to the target.", src)
		}
		if src.Level() != 3 {
			t.Errorf("V-list box %d is not at the target's level.", src)
		}
	}
}

func TestUListUniform(t *testing.T) {
	points := randPoints(500, 45)
	tr, err := NewUniform(points, 2)
	if err != nil {
		t.Fatalf("NewUniform failed: %s", err.Error())
	}

	for _, leaf := range tr.Leaves {
		u := tr.UList(leaf)
		expected := len(leaf.Neighbors()) + 1
		if len(u) != expected {
			t.Errorf("Expected %d U-list leaves for %d, got %d.",
				expected, leaf, len(u))
		}

		foundSelf := false
		for _, b := range u {
			if b == leaf {
				foundSelf = true
			} else if !leaf.IsAdjacent(b) {
				t.Errorf("U-list leaf %d is not adjacent to %d.", b, leaf)
			}
		}
		if !foundSelf {
			t.Errorf("U list of %d does not contain the leaf itself.", leaf)
		}
	}
}

func TestWXListsEmptyOnUniform(t *testing.T) {
	points := randPoints(500, 46)
	tr, err := NewUniform(points, 3)
	if err != nil {
		t.Fatalf("NewUniform failed: %s", err.Error())
	}

	for _, leaf := range tr.Leaves {
		if w := tr.WList(leaf); len(w) != 0 {
			t.Errorf("Expected an empty W list on a uniform tree, got %d boxes.",
				len(w))
		}
	}
	for level := 2; level <= 3; level++ {
		for _, k := range tr.Keys(level) {
			if x := tr.XList(k); len(x) != 0 {
				t.Errorf("Expected an empty X list on a uniform tree, got %d boxes.",
					len(x))
			}
		}
	}
}

func TestListsAdaptive(t *testing.T) {
	points := randPoints(3000, 47)
	tr, err := NewAdaptive(points, 30)
	if err != nil {
		t.Fatalf("NewAdaptive failed: %s", err.Error())
	}

	for _, leaf := range tr.Leaves {
		for _, u := range tr.UList(leaf) {
			if _, ok := tr.LeafIndex(u); !ok {
				t.Errorf("U-list box %d of leaf %d is not a leaf.", u, leaf)
			}
			if u != leaf && !leaf.IsAdjacent(u) {
				t.Errorf("U-list leaf %d is not adjacent to %d.", u, leaf)
			}
		}

		for _, w := range tr.WList(leaf) {
			if leaf.IsAdjacent(w) {
				t.Errorf("W-list box %d is adjacent to leaf %d.", w, leaf)
			}
			if !leaf.IsAdjacent(w.Parent()) && w.Parent().Level() > leaf.Level() {
				t.Errorf("W-list box %d has a non-adjacent parent.", w)
			}
			if _, ok := tr.GlobalIndex(w); !ok {
				t.Errorf("W-list box %d is not in the tree.", w)
			}
		}
	}

	// U-list symmetry: if b is in leaf a's U list, a is in b's.
	uSets := map[morton.Key]map[morton.Key]bool{}
	for _, leaf := range tr.Leaves {
		set := map[morton.Key]bool{}
		for _, u := range tr.UList(leaf) {
			set[u] = true
		}
		uSets[leaf] = set
	}
	for _, leaf := range tr.Leaves {
		for u := range uSets[leaf] {
			if !uSets[u][leaf] {
				t.Errorf("U lists are asymmetric between %d and %d.", leaf, u)
			}
		}
	}

	// X is the dual of W: x is in key's X list exactly when key is in x's
	// W list.
	for _, leaf := range tr.Leaves {
		for _, w := range tr.WList(leaf) {
			found := false
			for _, x := range tr.XList(w) {
				if x == leaf {
					found = true
				}
			}
			if !found {
				t.Errorf("Leaf %d sees %d in its W list, but not vice versa.",
					leaf, w)
			}
		}
	}
}
