/*package kernel defines the contract between the FMM engine and the analytic
Green's functions it accelerates, along with the reference Laplace kernel.

The fast M2L paths are only valid for kernels that are translation-invariant
and homogeneous: k(x+t, y+t) = k(x, y) and k(s*x, s*y) = s^p * k(x, y) for
some fixed degree p. Scale reports the resulting per-level factor, which lets
the engine reuse operators computed once on the root box at every level of
the octree.*/
package kernel

import (
	"math"
)

// Kernel is a pairwise potential between 3D point sets.
type Kernel interface {
	// Dim returns the spatial dimension of the kernel (always 3 here, kept
	// explicit so buffer strides aren't magic numbers at call sites).
	Dim() int
	// Evaluate accumulates, for each target t, sum_s k(source_s, target_t) *
	// charge_s into result[t]. result must have length len(targets) and is
	// added to, not overwritten, so passes can fold several source boxes into
	// one target buffer.
	Evaluate(sources, targets [][3]float64, charges, result []float64)
	// Assemble returns the dense interaction matrix in row-major order with
	// one row per target: out[t*len(sources) + s] = k(source_s, target_t).
	Assemble(sources, targets [][3]float64) []float64
	// Scale is the homogeneity factor relating an operator computed on the
	// root box to the same operator on a level-l box.
	Scale(level int) float64
}

// Laplace3D is the single-layer Laplace kernel k(x, y) = 1/(4 pi |x - y|),
// with the diagonal convention k(x, x) = 0.
type Laplace3D struct{}

const invFourPi = 1.0 / (4.0 * math.Pi)

func (Laplace3D) Dim() int { return 3 }

func (Laplace3D) Evaluate(sources, targets [][3]float64, charges, result []float64) {
	for i := range targets {
		sum := 0.0
		for j := range sources {
			dx := targets[i][0] - sources[j][0]
			dy := targets[i][1] - sources[j][1]
			dz := targets[i][2] - sources[j][2]
			r2 := dx*dx + dy*dy + dz*dz
			if r2 == 0 {
				continue
			}
			sum += charges[j] / math.Sqrt(r2)
		}
		result[i] += sum * invFourPi
	}
}

func (Laplace3D) Assemble(sources, targets [][3]float64) []float64 {
	out := make([]float64, len(targets)*len(sources))
	for i := range targets {
		row := out[i*len(sources) : (i+1)*len(sources)]
		for j := range sources {
			dx := targets[i][0] - sources[j][0]
			dy := targets[i][1] - sources[j][1]
			dz := targets[i][2] - sources[j][2]
			r2 := dx*dx + dy*dy + dz*dz
			if r2 == 0 {
				continue
			}
			row[j] = invFourPi / math.Sqrt(r2)
		}
	}
	return out
}

// Scale reports the homogeneity factor 2^-level: Laplace is homogeneous of
// degree -1 and a level-l box is 2^-l times the size of the root box.
func (Laplace3D) Scale(level int) float64 {
	return math.Ldexp(1, -level)
}
