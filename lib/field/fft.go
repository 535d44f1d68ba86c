package field

/* fft.go contains the 3D real-to-complex FFT used by the FFT M2L path,
composed from gonum's 1D transforms: a real transform along the fastest (x)
axis followed by complex transforms along y and z. Real arrays use the flat
layout of array.go; coefficient arrays use the same layout with the x axis
truncated to nx/2+1 entries. */

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT3 performs forward and inverse 3D real FFTs of a fixed size. It owns
// scratch buffers, so a single FFT3 must not be shared between goroutines;
// parallel passes create one per worker.
type FFT3 struct {
	nx, ny, nz int
	nxh        int

	xFFT *fourier.FFT
	yFFT *fourier.CmplxFFT
	zFFT *fourier.CmplxFFT

	lineR []float64
	lineC []complex128
	out1  []complex128
}

// NewFFT3 creates transforms for real arrays of the given dims.
func NewFFT3(nx, ny, nz int) *FFT3 {
	maxN := ny
	if nz > maxN {
		maxN = nz
	}
	if nx/2+1 > maxN {
		maxN = nx/2 + 1
	}
	return &FFT3{
		nx: nx, ny: ny, nz: nz, nxh: nx/2 + 1,
		xFFT:  fourier.NewFFT(nx),
		yFFT:  fourier.NewCmplxFFT(ny),
		zFFT:  fourier.NewCmplxFFT(nz),
		lineR: make([]float64, nx),
		lineC: make([]complex128, maxN),
		out1:  make([]complex128, maxN),
	}
}

// CoeffLen returns the length of the coefficient array: (nx/2+1)*ny*nz.
func (f *FFT3) CoeffLen() int { return f.nxh * f.ny * f.nz }

// Forward computes the unnormalized forward transform of src (length
// nx*ny*nz) into dst (length CoeffLen()).
func (f *FFT3) Forward(dst []complex128, src []float64) {
	nxh := f.nxh
	for k := 0; k < f.nz; k++ {
		for j := 0; j < f.ny; j++ {
			row := (k*f.ny + j) * f.nx
			copy(f.lineR, src[row:row+f.nx])
			f.xFFT.Coefficients(f.out1[:nxh], f.lineR)
			copy(dst[(k*f.ny+j)*nxh:], f.out1[:nxh])
		}
	}
	for k := 0; k < f.nz; k++ {
		for i := 0; i < nxh; i++ {
			for j := 0; j < f.ny; j++ {
				f.lineC[j] = dst[i+nxh*j+nxh*f.ny*k]
			}
			f.yFFT.Coefficients(f.out1[:f.ny], f.lineC[:f.ny])
			for j := 0; j < f.ny; j++ {
				dst[i+nxh*j+nxh*f.ny*k] = f.out1[j]
			}
		}
	}
	for j := 0; j < f.ny; j++ {
		for i := 0; i < nxh; i++ {
			for k := 0; k < f.nz; k++ {
				f.lineC[k] = dst[i+nxh*j+nxh*f.ny*k]
			}
			f.zFFT.Coefficients(f.out1[:f.nz], f.lineC[:f.nz])
			for k := 0; k < f.nz; k++ {
				dst[i+nxh*j+nxh*f.ny*k] = f.out1[k]
			}
		}
	}
}

// Inverse computes the inverse transform of src (length CoeffLen()) into dst
// (length nx*ny*nz), normalized so that Inverse(Forward(x)) = x. src is
// overwritten with intermediate values.
func (f *FFT3) Inverse(dst []float64, src []complex128) {
	nxh := f.nxh
	for j := 0; j < f.ny; j++ {
		for i := 0; i < nxh; i++ {
			for k := 0; k < f.nz; k++ {
				f.lineC[k] = src[i+nxh*j+nxh*f.ny*k]
			}
			f.zFFT.Sequence(f.out1[:f.nz], f.lineC[:f.nz])
			for k := 0; k < f.nz; k++ {
				src[i+nxh*j+nxh*f.ny*k] = f.out1[k]
			}
		}
	}
	for k := 0; k < f.nz; k++ {
		for i := 0; i < nxh; i++ {
			for j := 0; j < f.ny; j++ {
				f.lineC[j] = src[i+nxh*j+nxh*f.ny*k]
			}
			f.yFFT.Sequence(f.out1[:f.ny], f.lineC[:f.ny])
			for j := 0; j < f.ny; j++ {
				src[i+nxh*j+nxh*f.ny*k] = f.out1[j]
			}
		}
	}

	norm := 1.0 / float64(f.nx*f.ny*f.nz)
	for k := 0; k < f.nz; k++ {
		for j := 0; j < f.ny; j++ {
			row := (k*f.ny + j) * nxh
			f.xFFT.Sequence(f.lineR, src[row:row+nxh])
			out := dst[(k*f.ny+j)*f.nx:]
			for i := 0; i < f.nx; i++ {
				out[i] = f.lineR[i] * norm
			}
		}
	}
}
