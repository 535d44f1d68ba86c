/*package field implements the precomputed multipole-to-local (M2L) operators
of the kernel-independent FMM. M2L dominates the run time of the method, so
instead of evaluating kernel matrices per box pair, the operators for all 316
unique box offsets are computed once on level-3 geometry and reused at every
level through kernel homogeneity.

Two acceleration schemes are provided. FftTranslation diagonalizes each
operator as a circular convolution over an embedding of the surface grid in a
regular lattice, and handles all 8 siblings of a box against all 64 children
of a halo box in one frequency-space sweep. SvdTranslation compresses the
stacked operator family with two singular value decompositions and applies
each operator as three small dense products in the compressed basis.*/
package field

// Translation is a precomputed M2L operator set. The two implementations are
// FftTranslation and SvdTranslation; the engine switches on the concrete type.
type Translation interface {
	// ExpansionOrder returns the expansion order the operators were built for.
	ExpansionOrder() int
}
