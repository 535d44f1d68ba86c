package field

/* transfer.go contains the enumeration of unique M2L transfer vectors. For a
translation-invariant homogeneous kernel, the M2L operator between two boxes
depends only on the offset between them in box units, and at any level of a
complete octree there are exactly 316 distinct offsets between well-separated
boxes. Operators are precomputed once per offset on level-3 geometry and
rescaled per level when applied. */

import (
	"sort"

	"github.com/phil-mansfield/gofmm/lib/morton"
)

// TransferVector is one unique source-target offset of the M2L pass, together
// with a representative level-3 key pair realizing it.
type TransferVector struct {
	Components [3]int64
	Hash       int64
	Source     morton.Key
	Target     morton.Key
}

// NumTransferVectors is the number of unique M2L offsets in 3D: pairs of
// integer vectors in [-3, 3]^3 whose largest component magnitude is >= 2.
const NumTransferVectors = 316

// ComputeTransferVectors enumerates the unique transfer vectors by walking the
// interaction lists of every level-3 box of a complete tree and deduplicating
// by offset. The result is sorted by hash, so the ordering is deterministic.
func ComputeTransferVectors() []TransferVector {
	seen := map[int64]bool{}
	var out []TransferVector

	level := 3
	side := uint64(1) << uint(morton.DeepestLevel-level)
	n := uint64(1) << uint(level)

	for x := uint64(0); x < n; x++ {
		for y := uint64(0); y < n; y++ {
			for z := uint64(0); z < n; z++ {
				target := morton.NewKey([3]uint64{x * side, y * side, z * side}, level)
				for _, pn := range target.Parent().Neighbors() {
					for _, source := range pn.Children() {
						if target.IsAdjacent(source) || target == source {
							continue
						}
						v := morton.FindTransferVector(source, target)
						h := morton.TransferHash(v)
						if seen[h] {
							continue
						}
						seen[h] = true
						out = append(out, TransferVector{
							Components: v, Hash: h, Source: source, Target: target,
						})
					}
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}
