package morton

/* domain.go contains the axis-aligned bounding box shared by every key of an
octree. It is computed once from the input point set and is read-only for the
lifetime of the tree. */

import (
	"github.com/pkg/errors"
)

// Domain is the axis-aligned bounding box of a point set. Anchor coordinates
// of Morton keys are measured relative to Origin in units of
// Diameter / 2^DeepestLevel.
type Domain struct {
	Origin   [3]float64
	Diameter [3]float64
}

// NewDomain computes the bounding box of points. The diameter is padded by a
// relative 1e-10 so that points sitting exactly on the upper boundary still
// map to an in-range anchor.
func NewDomain(points [][3]float64) (Domain, error) {
	if len(points) == 0 {
		return Domain{}, errors.Errorf("cannot compute a domain for an empty point set")
	}

	min, max := points[0], points[0]
	for _, p := range points {
		for d := 0; d < 3; d++ {
			if p[d] < min[d] {
				min[d] = p[d]
			}
			if p[d] > max[d] {
				max[d] = p[d]
			}
		}
	}

	dom := Domain{Origin: min}
	for d := 0; d < 3; d++ {
		diam := max[d] - min[d]
		if diam == 0 {
			// Degenerate axis (e.g. all points in a plane). Any positive
			// diameter partitions correctly; reuse the largest real extent so
			// boxes don't become absurdly anisotropic.
			diam = maxExtent(min, max)
		}
		dom.Diameter[d] = diam * (1 + 1e-10)
	}
	return dom, nil
}

func maxExtent(min, max [3]float64) float64 {
	ext := 0.0
	for d := 0; d < 3; d++ {
		if max[d]-min[d] > ext {
			ext = max[d] - min[d]
		}
	}
	if ext == 0 {
		ext = 1
	}
	return ext
}

// Contains reports whether p lies inside the half-open box [Origin,
// Origin+Diameter).
func (dom Domain) Contains(p [3]float64) bool {
	for d := 0; d < 3; d++ {
		if p[d] < dom.Origin[d] || p[d] >= dom.Origin[d]+dom.Diameter[d] {
			return false
		}
	}
	return true
}

// Centre returns the midpoint of the domain.
func (dom Domain) Centre() [3]float64 {
	return [3]float64{
		dom.Origin[0] + dom.Diameter[0]/2,
		dom.Origin[1] + dom.Diameter[1]/2,
		dom.Origin[2] + dom.Diameter[2]/2,
	}
}
