package field

/* svd.go contains the SVD-compressed M2L operators. The 316 dense operators
are stacked side by side ("fat") and on top of each other ("thin"); the left
singular vectors of the fat stack and the right singular vectors of the thin
stack give shared rank-k bases for the target and source sides, and each
operator collapses to a k x k core in between. */

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/kernel"
	"github.com/phil-mansfield/gofmm/lib/morton"
)

// DefaultSvdRank is the compression rank used when the caller doesn't choose
// one.
const DefaultSvdRank = 50

// SvdTranslation holds the compressed M2L operator family. A multipole
// expansion is projected once per box with STBlock, translated with the core
// C[i] of its offset, and expanded back with U.
type SvdTranslation struct {
	Order int
	// Rank is the compression rank k after clamping to the operator size.
	Rank int

	// U is ncoeffs x k, STBlock is k x ncoeffs, and each core in C is k x k.
	U       *mat.Dense
	STBlock *mat.Dense
	C       []*mat.Dense

	// TransferVectors lists the offsets in the order matching C, and TvIndex
	// maps an offset hash to its position in both.
	TransferVectors []TransferVector
	TvIndex         map[int64]int
}

func (t *SvdTranslation) ExpansionOrder() int { return t.Order }

// NewSvdTranslation precomputes the compressed M2L operators for the given
// kernel and expansion order on dom's level-3 geometry. alpha is the surface
// scaling shared by source equivalent and target check surfaces. rank = 0
// selects DefaultSvdRank; ranks beyond the operator size are clamped.
func NewSvdTranslation(
	kern kernel.Kernel, order, rank int, dom morton.Domain, alpha float64,
) (*SvdTranslation, error) {
	if order < 2 {
		return nil, errors.Errorf("expansion order must be at least 2, got %d", order)
	}
	if rank < 0 {
		return nil, errors.Errorf("SVD rank must be non-negative, got %d", rank)
	}
	if rank == 0 {
		rank = DefaultSvdRank
	}

	nc := morton.Ncoeffs(order)
	if rank > nc {
		rank = nc
	}

	tvs := ComputeTransferVectors()
	nt := len(tvs)

	fat := mat.NewDense(nc, nc*nt, nil)
	thin := mat.NewDense(nc*nt, nc, nil)
	for i, tv := range tvs {
		sourceSurface := tv.Source.Surface(dom, order, alpha)
		targetSurface := tv.Target.Surface(dom, order, alpha)
		gram := kern.Assemble(sourceSurface, targetSurface)
		for r := 0; r < nc; r++ {
			for c := 0; c < nc; c++ {
				fat.Set(r, i*nc+c, gram[r*nc+c])
				thin.Set(i*nc+r, c, gram[r*nc+c])
			}
		}
	}

	var fatSvd mat.SVD
	if !fatSvd.Factorize(fat, mat.SVDThin) {
		return nil, errors.Errorf("SVD of the stacked M2L operators failed to converge")
	}
	var uFull, vFull mat.Dense
	fatSvd.UTo(&uFull)
	fatSvd.VTo(&vFull)
	sigma := fatSvd.Values(nil)

	var thinSvd mat.SVD
	if !thinSvd.Factorize(thin, mat.SVDThinV) {
		return nil, errors.Errorf("SVD of the stacked M2L operators failed to converge")
	}
	var vThin mat.Dense
	thinSvd.VTo(&vThin)

	t := &SvdTranslation{
		Order: order, Rank: rank,
		TransferVectors: tvs,
		TvIndex:         make(map[int64]int, nt),
	}
	for i, tv := range tvs {
		t.TvIndex[tv.Hash] = i
	}

	t.U = mat.NewDense(nc, rank, nil)
	t.U.Copy(uFull.Slice(0, nc, 0, rank))

	// STBlock is the first rank rows of the thin stack's V^T.
	t.STBlock = mat.NewDense(rank, nc, nil)
	for r := 0; r < rank; r++ {
		for c := 0; c < nc; c++ {
			t.STBlock.Set(r, c, vThin.At(c, r))
		}
	}

	// Core i = diag(sigma[:rank]) * (V^T block i) * STBlock^T.
	t.C = make([]*mat.Dense, nt)
	vtBlock := mat.NewDense(rank, nc, nil)
	for i := 0; i < nt; i++ {
		for r := 0; r < rank; r++ {
			for c := 0; c < nc; c++ {
				vtBlock.Set(r, c, vFull.At(i*nc+c, r))
			}
		}
		core := mat.NewDense(rank, rank, nil)
		core.Mul(vtBlock, t.STBlock.T())
		for r := 0; r < rank; r++ {
			for c := 0; c < rank; c++ {
				core.Set(r, c, sigma[r]*core.At(r, c))
			}
		}
		t.C[i] = core
	}

	return t, nil
}
