package field

/* fftdata.go contains the FFT-accelerated M2L operators. The multipole
coefficients of a source box live on its surface grid; embedding that grid in
a regular (2*order-1)^3 lattice turns the check potential sum into a discrete
convolution with a kernel sampled on the box's convolution grid, which a
zero-padded FFT evaluates in O(p^3 log p) instead of O(ncoeffs^2).

Operators are precomputed for a representative level-3 box: for each of the 26
neighbors of its parent (the halo) and each of that neighbor's 8 children
(sources), the kernel against each of the 8 siblings of the representative box
(targets) is sampled, padded, flipped, and transformed. Source-target pairs
that are adjacent are left as zero blocks, which also covers boxes missing
from adaptive trees. */

import (
	"github.com/pkg/errors"

	"github.com/phil-mansfield/gofmm/lib/kernel"
	"github.com/phil-mansfield/gofmm/lib/morton"
)

// ConvCornerIndex selects which corner of the source surface grid the
// convolution grid is anchored to. Index 7 is the maximal corner; together
// with the scan orders of the morton package this pins down the shift
// structure of the convolution and must not change.
const ConvCornerIndex = 7

// FftTranslation holds the frequency-space M2L kernels and the index maps
// between surface grids and padded convolution lattices.
type FftTranslation struct {
	Order int
	// M is the convolution grid side 2*order-1, P = M+1 the padded side, and
	// CoeffSize = (P/2+1)*P*P the length of one frequency-space kernel block.
	M, P      int
	CoeffSize int

	// PadIdx[s] is the flat index in the padded P^3 signal lattice of surface
	// point s, and ExtractIdx[s] the flat index in the padded lattice at which
	// the check potential of surface point s appears after the inverse
	// transform.
	PadIdx     []int
	ExtractIdx []int

	// KernelData[h] holds 64 frequency-space kernel blocks for halo position
	// h, one per (target sibling j, source child k) pair at block j*8+k.
	KernelData [26][]complex128
	// KernelDataRearranged is the same data in frequency-major order:
	// element f*64 + k*8 + j is frequency f of the (j, k) block. The M2L
	// sweep reads one 64-element run per frequency, so this layout keeps the
	// inner loop contiguous.
	KernelDataRearranged [26][]complex128
}

func (t *FftTranslation) ExpansionOrder() int { return t.Order }

// NewFFT returns a transform of the operator's padded size. Workers of a
// parallel pass each create their own.
func (t *FftTranslation) NewFFT() *FFT3 { return NewFFT3(t.P, t.P, t.P) }

// NewFftTranslation precomputes the frequency-space M2L kernels for the given
// kernel and expansion order on dom's level-3 geometry. alpha is the surface
// scaling shared by source equivalent and target check surfaces.
func NewFftTranslation(
	kern kernel.Kernel, order int, dom morton.Domain, alpha float64,
) (*FftTranslation, error) {
	if order < 2 {
		return nil, errors.Errorf("expansion order must be at least 2, got %d", order)
	}
	t := newFftSkeleton(order)
	m, p := t.M, t.P

	// Representative box: the level-3 box at the domain centre has a full
	// parent halo.
	key := morton.FromPoint(dom.Centre(), dom, 3)
	siblings := key.Siblings()
	halo, ok := key.Parent().AllNeighbors()

	fft := NewFFT3(p, p, p)
	kvalsDims := [3]int{m, m, m}
	padDims := [3]int{p, p, p}

	for h := range halo {
		t.KernelData[h] = make([]complex128, 64*t.CoeffSize)
		if !ok[h] {
			panic("Internal error: the representative level-3 box has an incomplete halo.")
		}
		children := halo[h].Children()

		for j, target := range siblings {
			targetSurface := target.Surface(dom, order, alpha)
			kernelPoint := targetSurface[0]

			for k, source := range children {
				if source == target || source.IsAdjacent(target) {
					continue
				}
				sourceSurface := source.Surface(dom, order, alpha)
				corners := morton.FindCorners(sourceSurface)
				convGrid := source.ConvolutionGrid(
					order, dom, alpha, corners[ConvCornerIndex], ConvCornerIndex)

				kvals := kern.Assemble(convGrid, [][3]float64{kernelPoint})
				padded := Pad3(kvals, kvalsDims, padDims, [3]int{0, 0, 0})
				flipped := Flip3(padded, padDims)

				block := t.KernelData[h][(j*8+k)*t.CoeffSize : (j*8+k+1)*t.CoeffSize]
				fft.Forward(block, flipped)
			}
		}
	}
	t.rearrange()

	return t, nil
}

// newFftSkeleton fills in everything about an FftTranslation that is a pure
// function of the expansion order: dimensions and the surface <-> padded
// lattice index maps. The kernel data is computed by NewFftTranslation or
// read from a cache file.
func newFftSkeleton(order int) *FftTranslation {
	m := 2*order - 1
	p := m + 1
	t := &FftTranslation{
		Order: order, M: m, P: p, CoeffSize: (p/2 + 1) * p * p,
	}

	surfToConv, _ := morton.SurfaceToConvMap(order)
	_, multiIndices := morton.SurfaceGrid(order)
	t.PadIdx = make([]int, len(surfToConv))
	t.ExtractIdx = make([]int, len(multiIndices))
	for s, c := range surfToConv {
		// The signal block is padded at offset (1, 1, 1).
		ci, cj, ck := c%m, c/m%m, c/(m*m)
		t.PadIdx[s] = (ci + 1) + p*(cj+1) + p*p*(ck+1)
	}
	for s, mi := range multiIndices {
		t.ExtractIdx[s] = mi[0] + p*mi[1] + p*p*mi[2]
	}
	return t
}

// rearrange transposes the per-halo kernel blocks into frequency-major order.
func (t *FftTranslation) rearrange() {
	for h := range t.KernelData {
		rearranged := make([]complex128, 64*t.CoeffSize)
		for f := 0; f < t.CoeffSize; f++ {
			for k := 0; k < 8; k++ {
				for j := 0; j < 8; j++ {
					rearranged[f*64+k*8+j] = t.KernelData[h][(j*8+k)*t.CoeffSize+f]
				}
			}
		}
		t.KernelDataRearranged[h] = rearranged
	}
}
