package field

/* array.go contains small dense 3D array helpers used by the FFT M2L
precomputation. Arrays are flat []float64 in x-inner scan order: the element
at lattice point (i, j, k) with dims (nx, ny, nz) lives at i + nx*j + nx*ny*k. */

// Pad3 embeds src (with the given dims) into a zeroed array of padDims at the
// given per-axis offset.
func Pad3(src []float64, dims, padDims, offset [3]int) []float64 {
	out := make([]float64, padDims[0]*padDims[1]*padDims[2])
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			srcRow := (k*dims[1] + j) * dims[0]
			dstRow := ((k+offset[2])*padDims[1]+j+offset[1])*padDims[0] + offset[0]
			copy(out[dstRow:dstRow+dims[0]], src[srcRow:srcRow+dims[0]])
		}
	}
	return out
}

// Flip3 reverses src along all three axes: out(i,j,k) = src(nx-1-i, ny-1-j,
// nz-1-k).
func Flip3(src []float64, dims [3]int) []float64 {
	nx, ny, nz := dims[0], dims[1], dims[2]
	out := make([]float64, len(src))
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				out[i+nx*j+nx*ny*k] = src[(nx-1-i)+nx*(ny-1-j)+nx*ny*(nz-1-k)]
			}
		}
	}
	return out
}
