package morton

/* surface.go contains the equivalent/check surface grids attached to octree
cells by the kernel-independent FMM, and the convolution grid used by the
FFT-accelerated M2L operator. The index conventions here (scan order, corner
numbering, the corner-7 anchoring of the convolution grid) are a fixed
contract with lib/field and must not be reordered. */

// Ncoeffs returns the number of points on the cube surface grid of the given
// expansion order, which is also the length of every multipole and local
// expansion: 6(order-1)^2 + 2.
func Ncoeffs(order int) int {
	return 6*(order-1)*(order-1) + 2
}

// SurfaceGrid returns the canonical surface grid of the given order: the
// boundary lattice points of an order^3 grid mapped onto [-1, 1]^3. Points
// are enumerated in z-outer, y-middle, x-inner scan order and the integer
// multi-index of each point is returned alongside its coordinates.
func SurfaceGrid(order int) (coords [][3]float64, multiIndices [][3]int) {
	n := Ncoeffs(order)
	coords = make([][3]float64, 0, n)
	multiIndices = make([][3]int, 0, n)

	for k := 0; k < order; k++ {
		for j := 0; j < order; j++ {
			for i := 0; i < order; i++ {
				onBoundary := i == 0 || i == order-1 ||
					j == 0 || j == order-1 ||
					k == 0 || k == order-1
				if !onBoundary {
					continue
				}
				coords = append(coords, [3]float64{
					2*float64(i)/float64(order-1) - 1,
					2*float64(j)/float64(order-1) - 1,
					2*float64(k)/float64(order-1) - 1,
				})
				multiIndices = append(multiIndices, [3]int{i, j, k})
			}
		}
	}
	return coords, multiIndices
}

// Surface returns k's surface grid embedded in the domain: the canonical grid
// scaled by alpha times the box's half-diameter and centred on the box.
func (k Key) Surface(dom Domain, order int, alpha float64) [][3]float64 {
	canonical, _ := SurfaceGrid(order)
	centre := k.Centre(dom)
	diam := k.BoxDiameter(dom)

	surface := make([][3]float64, len(canonical))
	for i, c := range canonical {
		for d := 0; d < 3; d++ {
			surface[i][d] = centre[d] + alpha*diam[d]/2*c[d]
		}
	}
	return surface
}

// FindCorners returns the 8 corners of an axis-aligned surface grid in binary
// order: corner index b has the maximal coordinate along axis d exactly when
// bit (2-d) of b is set, so index 0 is the minimal corner and index 7 the
// maximal one.
func FindCorners(surface [][3]float64) [8][3]float64 {
	min, max := surface[0], surface[0]
	for _, p := range surface {
		for d := 0; d < 3; d++ {
			if p[d] < min[d] {
				min[d] = p[d]
			}
			if p[d] > max[d] {
				max[d] = p[d]
			}
		}
	}

	var corners [8][3]float64
	for b := 0; b < 8; b++ {
		bits := [3]int{b >> 2 & 1, b >> 1 & 1, b & 1}
		for d := 0; d < 3; d++ {
			if bits[d] == 1 {
				corners[b][d] = max[d]
			} else {
				corners[b][d] = min[d]
			}
		}
	}
	return corners
}

// ConvolutionGrid returns the (2*order-1)^3 lattice with the surface grid's
// spacing, anchored so that the grid corner selected by cornerIndex
// coincides with convPoint. The FFT M2L path always anchors at corner 7 (the
// maximal corner of the source box's surface grid); this is part of the
// fixed indexing contract. Points are returned in x-inner scan order, so the
// flat index of lattice point (i, j, k) is i + n*j + n*n*k.
func (k Key) ConvolutionGrid(
	order int, dom Domain, alpha float64, convPoint [3]float64, cornerIndex int,
) [][3]float64 {
	n := 2*order - 1
	diam := k.BoxDiameter(dom)

	// Lattice spacing per axis, matching the surface grid of this box.
	var h [3]float64
	for d := 0; d < 3; d++ {
		h[d] = alpha * diam[d] / float64(order-1)
	}

	// The anchored corner sits at grid index n-1 along axis d when the
	// corresponding bit of cornerIndex is set, and at index 0 otherwise.
	bits := [3]int{cornerIndex >> 2 & 1, cornerIndex >> 1 & 1, cornerIndex & 1}
	var origin [3]float64
	for d := 0; d < 3; d++ {
		origin[d] = convPoint[d] - float64(bits[d]*(n-1))*h[d]
	}

	grid := make([][3]float64, 0, n*n*n)
	for kk := 0; kk < n; kk++ {
		for jj := 0; jj < n; jj++ {
			for ii := 0; ii < n; ii++ {
				grid = append(grid, [3]float64{
					origin[0] + float64(ii)*h[0],
					origin[1] + float64(jj)*h[1],
					origin[2] + float64(kk)*h[2],
				})
			}
		}
	}
	return grid
}

// SurfaceToConvMap returns the index maps between the surface grid of the
// given order and the (2*order-1)^3 convolution grid it embeds into. The
// surface occupies the boundary of the upper sub-block [order-1, 2*order-2]^3
// of the convolution grid. convToSurf[c] is -1 for convolution points with no
// surface counterpart.
func SurfaceToConvMap(order int) (surfToConv, convToSurf []int) {
	n := 2*order - 1
	lower, upper := order-1, 2*order-2

	surfToConv = make([]int, 0, Ncoeffs(order))
	convToSurf = make([]int, n*n*n)
	for i := range convToSurf {
		convToSurf[i] = -1
	}

	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				inBlock := i >= lower && j >= lower && k >= lower
				onBoundary := inBlock &&
					(i == lower || i == upper ||
						j == lower || j == upper ||
						k == lower || k == upper)
				if !onBoundary {
					continue
				}
				convIndex := i + n*j + n*n*k
				convToSurf[convIndex] = len(surfToConv)
				surfToConv = append(surfToConv, convIndex)
			}
		}
	}
	return surfToConv, convToSurf
}
