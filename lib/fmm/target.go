package fmm

/* target.go contains the downward translation L2L, the near-field pass P2P,
and the leaf evaluation passes L2P, M2P, and P2L. Every pass partitions its
targets into disjoint chunks, so workers never share writable state. */

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/parallel"
)

// l2l translates parent locals down to the boxes at the given level.
func (f *Fmm) l2l(level int) {
	keys := f.Tree.Keys(level)
	if len(keys) == 0 {
		return
	}
	nc := f.ncoeffs

	parallel.For(len(keys), parallel.FindChunkSize(len(keys), m2lMaxChunk),
		func(lo, hi int) {
			tmp := make([]float64, nc)
			for i := lo; i < hi; i++ {
				key := keys[i]
				pgi, _ := f.Tree.GlobalIndex(key.Parent())
				gi, _ := f.Tree.GlobalIndex(key)

				out := mat.NewVecDense(nc, tmp)
				out.MulVec(
					f.l2lMat[key.Octant()],
					mat.NewVecDense(nc, f.Locals[pgi*nc:(pgi+1)*nc]),
				)
				floats.Add(f.Locals[gi*nc:(gi+1)*nc], tmp)
			}
		})
}

// l2p evaluates each leaf's local expansion at the leaf's own points.
func (f *Fmm) l2p() {
	leaves := f.Tree.Leaves
	nc := f.ncoeffs

	parallel.For(len(leaves), parallel.FindChunkSize(len(leaves), leafMaxChunk),
		func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rng := f.Tree.LeafRanges[i]
				if rng[0] == rng[1] {
					continue
				}
				gi, _ := f.Tree.GlobalIndex(leaves[i])
				surface := leaves[i].Surface(f.Tree.Domain, f.Order, f.AlphaOuter)
				f.Kern.Evaluate(
					surface, f.Tree.Points[rng[0]:rng[1]],
					f.Locals[gi*nc:(gi+1)*nc], f.Potentials[rng[0]:rng[1]],
				)
			}
		})
}

// p2p evaluates the kernel directly between each leaf's points and the points
// of every leaf in its near field.
func (f *Fmm) p2p() {
	leaves := f.Tree.Leaves

	parallel.For(len(leaves), parallel.FindChunkSize(len(leaves), leafMaxChunk),
		func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rng := f.Tree.LeafRanges[i]
				if rng[0] == rng[1] {
					continue
				}
				targets := f.Tree.Points[rng[0]:rng[1]]
				result := f.Potentials[rng[0]:rng[1]]

				for _, u := range f.Tree.UList(leaves[i]) {
					ui, _ := f.Tree.LeafIndex(u)
					urng := f.Tree.LeafRanges[ui]
					if urng[0] == urng[1] {
						continue
					}
					f.Kern.Evaluate(
						f.Tree.Points[urng[0]:urng[1]], targets,
						f.Charges[urng[0]:urng[1]], result,
					)
				}
			}
		})
}

// m2p evaluates the multipoles of each leaf's W list directly at the leaf's
// points. Only adaptive trees produce non-empty W lists.
func (f *Fmm) m2p() {
	leaves := f.Tree.Leaves
	nc := f.ncoeffs

	parallel.For(len(leaves), parallel.FindChunkSize(len(leaves), leafMaxChunk),
		func(lo, hi int) {
			for i := lo; i < hi; i++ {
				rng := f.Tree.LeafRanges[i]
				if rng[0] == rng[1] {
					continue
				}
				targets := f.Tree.Points[rng[0]:rng[1]]
				result := f.Potentials[rng[0]:rng[1]]

				for _, w := range f.Tree.WList(leaves[i]) {
					gi, _ := f.Tree.GlobalIndex(w)
					surface := w.Surface(f.Tree.Domain, f.Order, f.AlphaInner)
					f.Kern.Evaluate(
						surface, targets, f.Multipoles[gi*nc:(gi+1)*nc], result,
					)
				}
			}
		})
}

// p2l accumulates, for each box at the given level, the direct contribution
// of the coarse leaves in its X list into the box's local expansion. Only
// adaptive trees produce non-empty X lists.
func (f *Fmm) p2l(level int) {
	keys := f.Tree.Keys(level)
	if len(keys) == 0 {
		return
	}
	nc := f.ncoeffs
	kscale := f.Kern.Scale(level)

	parallel.For(len(keys), parallel.FindChunkSize(len(keys), m2lMaxChunk),
		func(lo, hi int) {
			check := make([]float64, nc)
			scratch := make([]float64, nc)
			for i := lo; i < hi; i++ {
				key := keys[i]
				xList := f.Tree.XList(key)
				if len(xList) == 0 {
					continue
				}

				for j := range check {
					check[j] = 0
				}
				surface := key.Surface(f.Tree.Domain, f.Order, f.AlphaInner)
				for _, x := range xList {
					xi, _ := f.Tree.LeafIndex(x)
					xrng := f.Tree.LeafRanges[xi]
					if xrng[0] == xrng[1] {
						continue
					}
					f.Kern.Evaluate(
						f.Tree.Points[xrng[0]:xrng[1]], surface,
						f.Charges[xrng[0]:xrng[1]], check,
					)
				}

				gi, _ := f.Tree.GlobalIndex(key)
				f.addScaledDc2eInv(check, kscale, f.Locals[gi*nc:(gi+1)*nc], scratch)
			}
		})
}
