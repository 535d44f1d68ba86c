/*package fmm implements the kernel-independent fast multipole method on top
of the octree in lib/tree and the precomputed M2L operators in lib/field.

Each box carries two expansions over its surface grids: a multipole expansion
(equivalent charges on the upward equivalent surface reproducing the box's
far field) and a local expansion (equivalent charges on the downward
equivalent surface reproducing the field of far sources inside the box).
The upward pass builds multipoles from the leaves to the root (P2M, M2M),
the downward pass moves far-field information back down (M2L, L2L, and on
adaptive trees P2L), and the evaluation passes produce potentials at the
points (P2P, L2P, and on adaptive trees M2P).*/
package fmm

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/field"
	"github.com/phil-mansfield/gofmm/lib/kernel"
	"github.com/phil-mansfield/gofmm/lib/morton"
	"github.com/phil-mansfield/gofmm/lib/tree"
)

const (
	// p2mMaxChunk and m2mMaxChunk bound the number of boxes handled by one
	// matrix product in the chunked upward-pass GEMMs.
	p2mMaxChunk = 256
	m2mMaxChunk = 256

	// m2lMaxChunk bounds the number of target boxes (FFT: target parents)
	// handled by one M2L worker.
	m2lMaxChunk = 128

	// leafMaxChunk bounds the number of leaves handled by one worker of the
	// leaf-level evaluation passes.
	leafMaxChunk = 64
)

// Fmm is a configured FMM engine: a kernel, a tree over a fixed point set,
// precomputed operators, and the expansion storage reused across Run calls.
type Fmm struct {
	Order                  int
	AlphaInner, AlphaOuter float64
	Kern                   kernel.Kernel
	Tree                   *tree.Tree
	Translation            field.Translation

	ncoeffs int

	// Pseudo-inverses of the upward and downward check-to-equivalent
	// operators, kept in factored form: pinv(A) = inv1 * inv2.
	uc2eInv1, uc2eInv2 *mat.Dense
	dc2eInv1, dc2eInv2 *mat.Dense

	// m2mMat maps the stacked multipoles of 8 children (in octant order) to
	// the parent multipole. l2lMat[oct] maps a parent local to the local of
	// the child in octant oct, homogeneity scale included.
	m2mMat *mat.Dense
	l2lMat [8]*mat.Dense

	// Multipoles and Locals hold ncoeffs coefficients per box, indexed by
	// Tree.GlobalIndex, so each level is one contiguous block. Charges and
	// Potentials are in the tree's Morton point order.
	Multipoles []float64
	Locals     []float64
	Charges    []float64
	Potentials []float64
}

// New builds an engine for the given kernel, tree, and precomputed M2L
// operators. alphaInner and alphaOuter scale the inner and outer surface
// grids relative to the box; the operators must have been computed with the
// same order and alphaInner on the same domain.
func New(
	kern kernel.Kernel, t *tree.Tree, translation field.Translation,
	order int, alphaInner, alphaOuter float64,
) (*Fmm, error) {
	if order < 2 {
		return nil, errors.Errorf("expansion order must be at least 2, got %d", order)
	}
	if translation.ExpansionOrder() != order {
		return nil, errors.Errorf(
			"M2L operators were computed for order %d, engine order is %d",
			translation.ExpansionOrder(), order)
	}
	if alphaInner <= 0 || alphaOuter <= alphaInner {
		return nil, errors.Errorf(
			"surface scalings must satisfy 0 < alphaInner < alphaOuter, got %g and %g",
			alphaInner, alphaOuter)
	}

	f := &Fmm{
		Order: order, AlphaInner: alphaInner, AlphaOuter: alphaOuter,
		Kern: kern, Tree: t, Translation: translation,
		ncoeffs: morton.Ncoeffs(order),
	}

	dom := t.Domain
	upwardEquiv := morton.Root.Surface(dom, order, alphaInner)
	upwardCheck := morton.Root.Surface(dom, order, alphaOuter)
	downwardEquiv := morton.Root.Surface(dom, order, alphaOuter)
	downwardCheck := morton.Root.Surface(dom, order, alphaInner)

	nc := f.ncoeffs
	uc2e := mat.NewDense(nc, nc, kern.Assemble(upwardEquiv, upwardCheck))
	dc2e := mat.NewDense(nc, nc, kern.Assemble(downwardEquiv, downwardCheck))

	var err error
	if f.uc2eInv1, f.uc2eInv2, err = pinvFactors(uc2e); err != nil {
		return nil, err
	}
	if f.dc2eInv1, f.dc2eInv2, err = pinvFactors(dc2e); err != nil {
		return nil, err
	}

	// The child-to-parent operators are computed once on the root's children
	// and reused at every level through kernel homogeneity.
	children := morton.Root.Children()
	f.m2mMat = mat.NewDense(nc, 8*nc, nil)
	tmp := mat.NewDense(nc, nc, nil)
	out := mat.NewDense(nc, nc, nil)
	for oct, child := range children {
		childUpwardEquiv := child.Surface(dom, order, alphaInner)
		pc2ce := mat.NewDense(nc, nc, kern.Assemble(childUpwardEquiv, upwardCheck))
		tmp.Mul(f.uc2eInv2, pc2ce)
		out.Mul(f.uc2eInv1, tmp)
		for r := 0; r < nc; r++ {
			for c := 0; c < nc; c++ {
				f.m2mMat.Set(r, oct*nc+c, out.At(r, c))
			}
		}

		childDownwardCheck := child.Surface(dom, order, alphaInner)
		cc2pe := mat.NewDense(nc, nc, kern.Assemble(downwardEquiv, childDownwardCheck))
		tmp.Mul(f.dc2eInv2, cc2pe)
		l2l := mat.NewDense(nc, nc, nil)
		l2l.Mul(f.dc2eInv1, tmp)
		l2l.Scale(kern.Scale(child.Level()), l2l)
		f.l2lMat[oct] = l2l
	}

	f.Multipoles = make([]float64, t.NumKeys()*nc)
	f.Locals = make([]float64, t.NumKeys()*nc)
	f.Charges = make([]float64, len(t.Points))
	f.Potentials = make([]float64, len(t.Points))

	return f, nil
}

// pinvFactors returns the Moore-Penrose pseudo-inverse of a in the factored
// form pinv(a) = inv1 * inv2 with inv1 = V * diag(1/s) and inv2 = U^T.
// Singular values below the usual eps * max(dims) * s_max threshold are
// truncated to zero.
func pinvFactors(a *mat.Dense) (inv1, inv2 *mat.Dense, err error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, nil, errors.Errorf("SVD of a check-to-equivalent operator failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	r, c := a.Dims()
	maxDim := r
	if c > maxDim {
		maxDim = c
	}
	tol := float64(maxDim) * s[0] * 2.220446049250313e-16

	inv1 = mat.NewDense(r, len(s), nil)
	for i := 0; i < r; i++ {
		for j := 0; j < len(s); j++ {
			if s[j] > tol {
				inv1.Set(i, j, v.At(i, j)/s[j])
			}
		}
	}

	inv2 = mat.NewDense(len(s), c, nil)
	for i := 0; i < len(s); i++ {
		for j := 0; j < c; j++ {
			inv2.Set(i, j, u.At(j, i))
		}
	}
	return inv1, inv2, nil
}

// m2lScale is the extra per-level factor relating the M2L operators, which
// are computed on level-3 geometry, to the operator needed at the given
// level, on top of the kernel's own homogeneity scale.
func m2lScale(level int) float64 {
	if level < 2 {
		panic("Internal error: no box above level 2 has a well-separated interaction.")
	}
	if level == 2 {
		return 0.5
	}
	return math.Ldexp(1, level-3)
}

// addScaledDc2eInv accumulates scale * pinv(dc2e) * check into dst. check and
// tmp (length ncoeffs) are both clobbered.
func (f *Fmm) addScaledDc2eInv(check []float64, scale float64, dst, tmp []float64) {
	nc := f.ncoeffs
	t := mat.NewVecDense(nc, tmp)
	t.MulVec(f.dc2eInv2, mat.NewVecDense(nc, check))
	out := mat.NewVecDense(nc, check)
	out.MulVec(f.dc2eInv1, t)
	for i := 0; i < nc; i++ {
		dst[i] += scale * check[i]
	}
}
