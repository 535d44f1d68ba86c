package fmm

/* source.go contains the upward pass: P2M builds leaf multipoles from the
points, and M2M translates child multipoles to their parents one level at a
time. Both passes batch boxes into chunks so the check-to-equivalent solves
run as dense matrix products instead of per-box matrix-vector products. */

import (
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/morton"
	"github.com/phil-mansfield/gofmm/lib/parallel"
)

// p2m computes the multipole expansion of every leaf: the leaf's points are
// evaluated on its upward check surface and the check potentials are solved
// back to equivalent charges.
func (f *Fmm) p2m() {
	leaves := f.Tree.Leaves
	if len(leaves) == 0 {
		return
	}
	nc := f.ncoeffs
	checks := make([]float64, len(leaves)*nc)

	parallel.For(len(leaves), parallel.FindChunkSize(len(leaves), leafMaxChunk),
		func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rng := f.Tree.LeafRanges[i]
				if rng[0] == rng[1] {
					continue
				}
				surface := leaves[i].Surface(f.Tree.Domain, f.Order, f.AlphaOuter)
				f.Kern.Evaluate(
					f.Tree.Points[rng[0]:rng[1]], surface,
					f.Charges[rng[0]:rng[1]], checks[i*nc:(i+1)*nc],
				)
			}
		})

	parallel.For(len(leaves), parallel.FindChunkSize(len(leaves), p2mMaxChunk),
		func(lo, hi int) {
			n := hi - lo
			check := mat.NewDense(n, nc, checks[lo*nc:hi*nc])
			tmp := mat.NewDense(n, nc, nil)
			out := mat.NewDense(n, nc, nil)
			// Row-major: out_i = check_i * inv2^T * inv1^T = (pinv * check_i)^T.
			tmp.Mul(check, f.uc2eInv2.T())
			out.Mul(tmp, f.uc2eInv1.T())

			for i := lo; i < hi; i++ {
				gi, _ := f.Tree.GlobalIndex(leaves[i])
				scale := f.Kern.Scale(leaves[i].Level())
				row := out.RawRowView(i - lo)
				dst := f.Multipoles[gi*nc : (gi+1)*nc]
				for c := 0; c < nc; c++ {
					dst[c] = scale * row[c]
				}
			}
		})
}

// m2m translates the multipoles of the boxes at the given level to their
// parents. Children of one parent are stacked into a single row and hit with
// the combined 8-child operator; missing children of adaptive trees
// contribute zero blocks.
func (f *Fmm) m2m(level int) {
	keys := f.Tree.Keys(level)
	if len(keys) == 0 {
		return
	}
	nc := f.ncoeffs

	// Keys at one level are Morton-sorted, so siblings are consecutive and
	// parents can be deduplicated in one sweep.
	var parents []morton.Key
	for _, k := range keys {
		p := k.Parent()
		if len(parents) == 0 || parents[len(parents)-1] != p {
			parents = append(parents, p)
		}
	}

	parallel.For(len(parents), parallel.FindChunkSize(len(parents), m2mMaxChunk),
		func(lo, hi int) {
			n := hi - lo
			childBuf := make([]float64, n*8*nc)
			for i := lo; i < hi; i++ {
				row := childBuf[(i-lo)*8*nc : (i-lo+1)*8*nc]
				for oct, child := range parents[i].Children() {
					gi, ok := f.Tree.GlobalIndex(child)
					if !ok {
						continue
					}
					copy(row[oct*nc:(oct+1)*nc], f.Multipoles[gi*nc:(gi+1)*nc])
				}
			}

			in := mat.NewDense(n, 8*nc, childBuf)
			out := mat.NewDense(n, nc, nil)
			out.Mul(in, f.m2mMat.T())

			for i := lo; i < hi; i++ {
				gi, _ := f.Tree.GlobalIndex(parents[i])
				row := out.RawRowView(i - lo)
				dst := f.Multipoles[gi*nc : (gi+1)*nc]
				for c := 0; c < nc; c++ {
					dst[c] += row[c]
				}
			}
		})
}
