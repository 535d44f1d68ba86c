package fmm

/* m2l.go contains the multipole-to-local pass, one level at a time, with one
implementation per operator family in lib/field.

The SVD path compresses every multipole at the level once, applies the small
core matrix of each interaction, and expands the accumulated result back to a
check potential per target box.

The FFT path transforms every multipole at the level once, then walks target
boxes a parent at a time: the 8 siblings of a parent share the same 26-box
halo, so each frequency is handled as a dense 8x8-per-halo-direction sweep
over the rearranged kernel blocks. Boxes missing from adaptive trees simply
contribute zero signal blocks. */

import (
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/field"
	"github.com/phil-mansfield/gofmm/lib/morton"
	"github.com/phil-mansfield/gofmm/lib/parallel"
)

// m2l converts the multipoles of well-separated boxes at the given level into
// local expansions.
func (f *Fmm) m2l(level int) {
	switch t := f.Translation.(type) {
	case *field.FftTranslation:
		f.m2lFft(level, t)
	case *field.SvdTranslation:
		f.m2lSvd(level, t)
	default:
		panic("Internal error: unrecognized translation type.")
	}
}

func (f *Fmm) m2lSvd(level int, t *field.SvdTranslation) {
	keys := f.Tree.Keys(level)
	if len(keys) == 0 {
		return
	}
	nc, rank := f.ncoeffs, t.Rank
	offset := f.Tree.LevelOffset(level)
	multiplier := f.Kern.Scale(level) * m2lScale(level)

	// Compress every multipole at the level in one product.
	multipoles := mat.NewDense(len(keys), nc, f.Multipoles[offset*nc:(offset+len(keys))*nc])
	compressed := mat.NewDense(len(keys), rank, nil)
	compressed.Mul(multipoles, t.STBlock.T())

	parallel.For(len(keys), parallel.FindChunkSize(len(keys), m2lMaxChunk),
		func(lo, hi int) {
			acc := make([]float64, rank)
			tmp := make([]float64, rank)
			check := make([]float64, nc)
			scratch := make([]float64, nc)

			for i := lo; i < hi; i++ {
				key := keys[i]
				vList := f.Tree.VList(key)
				if len(vList) == 0 {
					continue
				}

				for j := range acc {
					acc[j] = 0
				}
				for _, src := range vList {
					si, _ := f.Tree.LevelIndex(level, src)
					hash := morton.TransferHash(morton.FindTransferVector(src, key))
					core := t.C[t.TvIndex[hash]]

					v := mat.NewVecDense(rank, tmp)
					v.MulVec(core, compressed.RowView(si))
					for j := range acc {
						acc[j] += tmp[j]
					}
				}

				out := mat.NewVecDense(nc, check)
				out.MulVec(t.U, mat.NewVecDense(rank, acc))

				gi, _ := f.Tree.GlobalIndex(key)
				f.addScaledDc2eInv(
					check, multiplier, f.Locals[gi*nc:(gi+1)*nc], scratch)
			}
		})
}

func (f *Fmm) m2lFft(level int, t *field.FftTranslation) {
	keys := f.Tree.Keys(level)
	if len(keys) == 0 {
		return
	}
	nc, cs := f.ncoeffs, t.CoeffSize
	nk := len(keys)
	p3 := t.P * t.P * t.P
	offset := f.Tree.LevelOffset(level)
	multiplier := f.Kern.Scale(level) * m2lScale(level)

	// Forward transform of every multipole at the level, embedded in the
	// padded convolution lattice.
	sigHat := make([]complex128, nk*cs)
	parallel.For(nk, parallel.FindChunkSize(nk, m2lMaxChunk), func(lo, hi int) {
		fft := t.NewFFT()
		signal := make([]float64, p3)
		for i := lo; i < hi; i++ {
			m := f.Multipoles[(offset+i)*nc : (offset+i+1)*nc]
			for j := range signal {
				signal[j] = 0
			}
			for s := 0; s < nc; s++ {
				signal[t.PadIdx[s]] = m[s]
			}
			fft.Forward(sigHat[i*cs:(i+1)*cs], signal)
		}
	})

	// Transpose to frequency-major order so the per-frequency sweep below
	// reads source coefficients with unit stride in the box index.
	sigHatF := make([]complex128, nk*cs)
	parallel.For(cs, parallel.FindChunkSize(cs, 512), func(lo, hi int) {
		for freq := lo; freq < hi; freq++ {
			for i := 0; i < nk; i++ {
				sigHatF[freq*nk+i] = sigHat[i*cs+freq]
			}
		}
	})

	var parents []morton.Key
	for _, k := range keys {
		p := k.Parent()
		if len(parents) == 0 || parents[len(parents)-1] != p {
			parents = append(parents, p)
		}
	}

	// Each parent owns its 8 children's locals, so writes are disjoint.
	parallel.For(len(parents), parallel.FindChunkSize(len(parents), m2lMaxChunk),
		func(lo, hi int) {
			fft := t.NewFFT()
			acc := make([]complex128, 8*cs)
			childHat := make([]complex128, cs)
			grid := make([]float64, p3)
			check := make([]float64, nc)
			scratch := make([]float64, nc)

			for pi := lo; pi < hi; pi++ {
				parent := parents[pi]
				children := parent.Children()

				// Level-local index of each halo box's children, -1 when the
				// box is outside the domain or absent from the tree.
				var srcIdx [26][8]int
				haloKeys, ok := parent.AllNeighbors()
				for h := range haloKeys {
					for k := range srcIdx[h] {
						srcIdx[h][k] = -1
					}
					if !ok[h] {
						continue
					}
					for k, c := range haloKeys[h].Children() {
						if ci, exists := f.Tree.LevelIndex(level, c); exists {
							srcIdx[h][k] = ci
						}
					}
				}

				for i := range acc {
					acc[i] = 0
				}
				for freq := 0; freq < cs; freq++ {
					sig := sigHatF[freq*nk : (freq+1)*nk]
					out := acc[freq*8 : (freq+1)*8]
					for h := 0; h < 26; h++ {
						kernelBlock := t.KernelDataRearranged[h][freq*64 : (freq+1)*64]
						for k := 0; k < 8; k++ {
							si := srcIdx[h][k]
							if si < 0 {
								continue
							}
							s := sig[si]
							if s == 0 {
								continue
							}
							row := kernelBlock[k*8 : (k+1)*8]
							for j := 0; j < 8; j++ {
								out[j] += s * row[j]
							}
						}
					}
				}

				for j, child := range children {
					if _, exists := f.Tree.LevelIndex(level, child); !exists {
						continue
					}
					for freq := 0; freq < cs; freq++ {
						childHat[freq] = acc[freq*8+j]
					}
					fft.Inverse(grid, childHat)
					for s := 0; s < nc; s++ {
						check[s] = grid[t.ExtractIdx[s]]
					}

					gi, _ := f.Tree.GlobalIndex(child)
					f.addScaledDc2eInv(
						check, multiplier, f.Locals[gi*nc:(gi+1)*nc], scratch)
				}
			}
		})
}
