package binio

import (
	"bytes"
	"testing"

	"github.com/phil-mansfield/gofmm/lib/eq"
)

func TestRoundTripFloat64s(t *testing.T) {
	x := []float64{0, 1, -2.5, 1e-300, 1e300}
	buf := &bytes.Buffer{}
	if err := WriteAsBytes(buf, x); err != nil {
		t.Fatalf("WriteAsBytes failed: %s", err.Error())
	}

	y := make([]float64, len(x))
	if err := ReadAsBytes(buf, y); err != nil {
		t.Fatalf("ReadAsBytes failed: %s", err.Error())
	}
	if !eq.Float64s(x, y) {
		t.Errorf("Expected %g, got %g.", x, y)
	}
}

func TestRoundTripVec64s(t *testing.T) {
	x := [][3]float64{{1, 2, 3}, {-4, 5, -6}, {0, 0, 0}}
	buf := &bytes.Buffer{}
	if err := WriteAsBytes(buf, x); err != nil {
		t.Fatalf("WriteAsBytes failed: %s", err.Error())
	}

	y := make([][3]float64, len(x))
	if err := ReadAsBytes(buf, y); err != nil {
		t.Fatalf("ReadAsBytes failed: %s", err.Error())
	}
	if !eq.Vec64s(x, y) {
		t.Errorf("Expected %g, got %g.", x, y)
	}
}

func TestRoundTripComplex128s(t *testing.T) {
	x := []complex128{0, 1 + 2i, -3.5i, complex(1e10, -1e-10)}
	buf := &bytes.Buffer{}
	if err := WriteAsBytes(buf, x); err != nil {
		t.Fatalf("WriteAsBytes failed: %s", err.Error())
	}

	y := make([]complex128, len(x))
	if err := ReadAsBytes(buf, y); err != nil {
		t.Fatalf("ReadAsBytes failed: %s", err.Error())
	}
	for i := range x {
		if x[i] != y[i] {
			t.Errorf("%d) Expected %g, got %g.", i, x[i], y[i])
		}
	}
}

func TestRoundTripUint64s(t *testing.T) {
	x := []uint64{0, 1, 1 << 63, ^uint64(0)}
	buf := &bytes.Buffer{}
	if err := WriteAsBytes(buf, x); err != nil {
		t.Fatalf("WriteAsBytes failed: %s", err.Error())
	}

	y := make([]uint64, len(x))
	if err := ReadAsBytes(buf, y); err != nil {
		t.Fatalf("ReadAsBytes failed: %s", err.Error())
	}
	if !eq.Uint64s(x, y) {
		t.Errorf("Expected %d, got %d.", x, y)
	}
}
