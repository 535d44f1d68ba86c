package field

/* cache.go contains the on-disk cache for precomputed M2L operators. The FFT
kernels and SVD factors depend only on the kernel, the expansion order, the
surface scaling, and the domain shape, so repeated runs over the same data
can skip the precomputation entirely. Files are zstd-compressed raw buffers
in system byte order: a per-machine cache, not an interchange format. */

import (
	"io"
	"os"

	"github.com/DataDog/zstd"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/gofmm/lib/binio"
)

const (
	// cacheVersion differentiates between breaking changes to the cache
	// layout.
	cacheVersion uint64 = 0x1

	cacheKindFft uint64 = 1
	cacheKindSvd uint64 = 2
)

// Save writes a precomputed operator set to path, compressed with zstd.
func Save(path string, t Translation) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create operator cache %s", path)
	}
	defer f.Close()

	w := zstd.NewWriter(f)
	switch op := t.(type) {
	case *FftTranslation:
		err = saveFft(w, op)
	case *SvdTranslation:
		err = saveSvd(w, op)
	default:
		panic("Internal error: unrecognized translation type.")
	}
	if err != nil {
		w.Close()
		return errors.Wrapf(err, "could not write operator cache %s", path)
	}
	return w.Close()
}

// Load reads an operator set written by Save. The concrete type is recovered
// from the file header.
func Load(path string) (Translation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open operator cache %s", path)
	}
	defer f.Close()

	r := zstd.NewReader(f)
	defer r.Close()

	header := make([]uint64, 3)
	if err := binio.ReadAsBytes(r, header); err != nil {
		return nil, errors.Wrapf(err, "could not read operator cache %s", path)
	}
	if header[0] != cacheVersion {
		return nil, errors.Errorf(
			"operator cache %s has version %d, expected %d", path, header[0], cacheVersion)
	}

	var t Translation
	order := int(header[2])
	switch header[1] {
	case cacheKindFft:
		t, err = loadFft(r, order)
	case cacheKindSvd:
		t, err = loadSvd(r, order)
	default:
		return nil, errors.Errorf(
			"operator cache %s has unrecognized operator kind %d", path, header[1])
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read operator cache %s", path)
	}
	return t, nil
}

func saveFft(w io.Writer, t *FftTranslation) error {
	header := []uint64{cacheVersion, cacheKindFft, uint64(t.Order)}
	if err := binio.WriteAsBytes(w, header); err != nil {
		return err
	}
	for h := range t.KernelData {
		if err := binio.WriteAsBytes(w, t.KernelData[h]); err != nil {
			return err
		}
	}
	return nil
}

func loadFft(r io.Reader, order int) (*FftTranslation, error) {
	if order < 2 {
		return nil, errors.Errorf("cached expansion order %d is invalid", order)
	}
	t := newFftSkeleton(order)
	for h := range t.KernelData {
		t.KernelData[h] = make([]complex128, 64*t.CoeffSize)
		if err := binio.ReadAsBytes(r, t.KernelData[h]); err != nil {
			return nil, err
		}
	}
	t.rearrange()
	return t, nil
}

func saveSvd(w io.Writer, t *SvdTranslation) error {
	nc, _ := t.U.Dims()
	header := []uint64{
		cacheVersion, cacheKindSvd, uint64(t.Order),
		uint64(t.Rank), uint64(nc), uint64(len(t.C)),
	}
	if err := binio.WriteAsBytes(w, header); err != nil {
		return err
	}
	if err := binio.WriteAsBytes(w, t.U.RawMatrix().Data); err != nil {
		return err
	}
	if err := binio.WriteAsBytes(w, t.STBlock.RawMatrix().Data); err != nil {
		return err
	}
	for _, core := range t.C {
		if err := binio.WriteAsBytes(w, core.RawMatrix().Data); err != nil {
			return err
		}
	}
	return nil
}

func loadSvd(r io.Reader, order int) (*SvdTranslation, error) {
	dims := make([]uint64, 3)
	if err := binio.ReadAsBytes(r, dims); err != nil {
		return nil, err
	}
	rank, nc, nt := int(dims[0]), int(dims[1]), int(dims[2])

	tvs := ComputeTransferVectors()
	if nt != len(tvs) {
		return nil, errors.Errorf(
			"cached SVD operators have %d transfer vectors, expected %d", nt, len(tvs))
	}

	t := &SvdTranslation{
		Order: order, Rank: rank,
		TransferVectors: tvs,
		TvIndex:         make(map[int64]int, nt),
	}
	for i, tv := range tvs {
		t.TvIndex[tv.Hash] = i
	}

	buf := make([]float64, nc*rank)
	if err := binio.ReadAsBytes(r, buf); err != nil {
		return nil, err
	}
	t.U = mat.NewDense(nc, rank, buf)

	buf = make([]float64, rank*nc)
	if err := binio.ReadAsBytes(r, buf); err != nil {
		return nil, err
	}
	t.STBlock = mat.NewDense(rank, nc, buf)

	t.C = make([]*mat.Dense, nt)
	for i := range t.C {
		buf = make([]float64, rank*rank)
		if err := binio.ReadAsBytes(r, buf); err != nil {
			return nil, err
		}
		t.C[i] = mat.NewDense(rank, rank, buf)
	}
	return t, nil
}
