package fmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gofmm/lib/field"
	"github.com/phil-mansfield/gofmm/lib/kernel"
	"github.com/phil-mansfield/gofmm/lib/morton"
	"github.com/phil-mansfield/gofmm/lib/tree"
)

func randPoints(n int, seed int64) [][3]float64 {
	rng := rand.New(rand.NewSource(seed))
	points := make([][3]float64, n)
	for i := range points {
		points[i] = [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}
	return points
}

// spherePoints places n points on the unit sphere with the Fibonacci lattice,
// giving an adaptive tree leaves at several levels.
func spherePoints(n int) [][3]float64 {
	golden := math.Pi * (3 - math.Sqrt(5))
	points := make([][3]float64, n)
	for i := range points {
		y := 1 - 2*float64(i)/float64(n-1)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		points[i] = [3]float64{r * math.Cos(theta), y, r * math.Sin(theta)}
	}
	return points
}

func randCharges(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	charges := make([]float64, n)
	for i := range charges {
		charges[i] = rng.Float64()
	}
	return charges
}

func directPotentials(points [][3]float64, charges []float64) []float64 {
	out := make([]float64, len(points))
	kernel.Laplace3D{}.Evaluate(points, points, charges, out)
	return out
}

// relErr returns the relative l2 error of got against want.
func relErr(got, want []float64) float64 {
	num, den := 0.0, 0.0
	for i := range got {
		d := got[i] - want[i]
		num += d * d
		den += want[i] * want[i]
	}
	return math.Sqrt(num / den)
}

// runUpward runs only P2M and M2M with the given charges in input order.
func runUpward(f *Fmm, charges []float64) {
	for i, gi := range f.Tree.GlobalIndices {
		f.Charges[i] = charges[gi]
	}
	f.p2m()
	for level := f.Tree.Depth; level >= 1; level-- {
		f.m2m(level)
	}
}

func newTestEngine(t *testing.T, tr *tree.Tree, order int) *Fmm {
	t.Helper()
	trans, err := field.NewFftTranslation(kernel.Laplace3D{}, order, tr.Domain, 1.05)
	require.NoError(t, err)
	f, err := New(kernel.Laplace3D{}, tr, trans, order, 1.05, 2.95)
	require.NoError(t, err)
	return f
}

// TestOperatorMatrices checks the dimensions of the combined child-to-parent
// operators built by New.
func TestOperatorMatrices(t *testing.T) {
	points := randPoints(500, 41)
	tr, err := tree.NewUniform(points, 2)
	require.NoError(t, err)
	f := newTestEngine(t, tr, 4)

	nc := f.ncoeffs
	r, c := f.m2mMat.Dims()
	if r != nc || c != 8*nc {
		t.Errorf("Expected the M2M matrix to be %d x %d, got %d x %d.",
			nc, 8*nc, r, c)
	}
	for oct := 0; oct < 8; oct++ {
		r, c = f.l2lMat[oct].Dims()
		if r != nc || c != nc {
			t.Errorf("Expected L2L matrix %d to be %d x %d, got %d x %d.",
				oct, nc, nc, r, c)
		}
	}
}

// TestUpwardPass checks that the root multipole reproduces the far field of
// the whole point set at a distant probe.
func TestUpwardPass(t *testing.T) {
	order := 6
	probe := [][3]float64{{100000, 0, 0}}

	configs := []struct {
		name   string
		points [][3]float64
		build  func(points [][3]float64) (*tree.Tree, error)
	}{
		{"uniform", randPoints(10000, 42),
			func(p [][3]float64) (*tree.Tree, error) { return tree.NewUniform(p, 3) }},
		{"adaptive", randPoints(10000, 43),
			func(p [][3]float64) (*tree.Tree, error) { return tree.NewAdaptive(p, 150) }},
		{"sphere", spherePoints(10000),
			func(p [][3]float64) (*tree.Tree, error) { return tree.NewAdaptive(p, 150) }},
	}

	for _, cfg := range configs {
		tr, err := cfg.build(cfg.points)
		require.NoError(t, err)
		f := newTestEngine(t, tr, order)

		charges := randCharges(len(cfg.points), 44)
		runUpward(f, charges)

		rootGi, ok := tr.GlobalIndex(morton.Root)
		require.True(t, ok)
		nc := f.ncoeffs
		surface := morton.Root.Surface(tr.Domain, order, f.AlphaInner)

		got := []float64{0}
		f.Kern.Evaluate(surface, probe, f.Multipoles[rootGi*nc:(rootGi+1)*nc], got)

		want := []float64{0}
		f.Kern.Evaluate(cfg.points, probe, charges, want)

		rel := math.Abs(got[0]-want[0]) / math.Abs(want[0])
		if rel > 1e-5 {
			t.Errorf("%s: root multipole is off by a relative %g.", cfg.name, rel)
		}
	}
}

func TestRunUniformFft(t *testing.T) {
	points := spherePoints(4000)
	tr, err := tree.NewUniform(points, 3)
	require.NoError(t, err)
	f := newTestEngine(t, tr, 6)

	for trial := 0; trial < 10; trial++ {
		charges := randCharges(len(points), 47+int64(trial))
		got, err := f.Run(charges)
		require.NoError(t, err)

		want := directPotentials(points, charges)
		if rel := relErr(got, want); rel > 1e-5 {
			t.Errorf("%d) FFT potentials are off by a relative %g.", trial, rel)
		}
	}
}

func TestRunUniformSvd(t *testing.T) {
	points := spherePoints(4000)
	tr, err := tree.NewUniform(points, 3)
	require.NoError(t, err)

	// A rank beyond ncoeffs clamps to full rank, so the only error left is
	// the expansion order's.
	trans, err := field.NewSvdTranslation(kernel.Laplace3D{}, 6, 1000, tr.Domain, 1.05)
	require.NoError(t, err)
	f, err := New(kernel.Laplace3D{}, tr, trans, 6, 1.05, 2.95)
	require.NoError(t, err)

	for trial := 0; trial < 10; trial++ {
		charges := randCharges(len(points), 57+int64(trial))
		got, err := f.Run(charges)
		require.NoError(t, err)

		want := directPotentials(points, charges)
		if rel := relErr(got, want); rel > 1e-5 {
			t.Errorf("%d) SVD potentials are off by a relative %g.", trial, rel)
		}
	}
}

func TestRunAdaptive(t *testing.T) {
	points := spherePoints(4000)
	tr, err := tree.NewAdaptive(points, 150)
	require.NoError(t, err)
	require.Equal(t, tree.Adaptive, tr.Mode)
	f := newTestEngine(t, tr, 6)

	charges := randCharges(len(points), 50)
	got, err := f.Run(charges)
	require.NoError(t, err)

	want := directPotentials(points, charges)
	if rel := relErr(got, want); rel > 1e-5 {
		t.Errorf("Adaptive potentials are off by a relative %g.", rel)
	}
}

// TestRunRepeated checks that the expansion buffers are fully reset between
// Run calls.
func TestRunRepeated(t *testing.T) {
	points := randPoints(2000, 51)
	tr, err := tree.NewUniform(points, 3)
	require.NoError(t, err)
	f := newTestEngine(t, tr, 5)

	_, err = f.Run(randCharges(len(points), 52))
	require.NoError(t, err)

	charges := randCharges(len(points), 53)
	got, err := f.Run(charges)
	require.NoError(t, err)

	want := directPotentials(points, charges)
	if rel := relErr(got, want); rel > 1e-4 {
		t.Errorf("Second run is off by a relative %g.", rel)
	}
}

// TestRunSingleLeaf covers the degenerate tree where the root is the only
// leaf: everything is near field and the result matches the direct sum to
// round-off.
func TestRunSingleLeaf(t *testing.T) {
	points := randPoints(50, 54)
	tr, err := tree.NewAdaptive(points, 100)
	require.NoError(t, err)
	require.Len(t, tr.Leaves, 1)
	f := newTestEngine(t, tr, 3)

	charges := randCharges(len(points), 55)
	got, err := f.Run(charges)
	require.NoError(t, err)

	want := directPotentials(points, charges)
	for i := range got {
		require.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestRunChargeMismatch(t *testing.T) {
	points := randPoints(100, 56)
	tr, err := tree.NewUniform(points, 2)
	require.NoError(t, err)
	f := newTestEngine(t, tr, 3)

	if _, err := f.Run(make([]float64, 99)); err == nil {
		t.Errorf("Expected an error for a charge/point length mismatch.")
	}
}

func TestNewValidation(t *testing.T) {
	points := randPoints(100, 57)
	tr, err := tree.NewUniform(points, 2)
	require.NoError(t, err)
	trans, err := field.NewFftTranslation(kernel.Laplace3D{}, 3, tr.Domain, 1.05)
	require.NoError(t, err)

	tests := []struct {
		order                  int
		alphaInner, alphaOuter float64
	}{
		{1, 1.05, 2.95},  // order too small
		{4, 1.05, 2.95},  // order does not match the operators
		{3, 0, 2.95},     // alphaInner not positive
		{3, 2.95, 1.05},  // alphaOuter below alphaInner
	}
	for i := range tests {
		_, err := New(kernel.Laplace3D{}, tr, trans,
			tests[i].order, tests[i].alphaInner, tests[i].alphaOuter)
		if err == nil {
			t.Errorf("%d) Expected a configuration error.", i)
		}
	}
}

func TestM2lScale(t *testing.T) {
	tests := []struct {
		level int
		scale float64
	}{
		{2, 0.5},
		{3, 1},
		{4, 2},
		{5, 4},
		{10, 128},
	}
	for i := range tests {
		if m2lScale(tests[i].level) != tests[i].scale {
			t.Errorf("%d) Expected m2lScale(%d) = %g, got %g.", i,
				tests[i].level, tests[i].scale, m2lScale(tests[i].level))
		}
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Expected m2lScale to panic below level 2.")
		}
	}()
	m2lScale(1)
}
