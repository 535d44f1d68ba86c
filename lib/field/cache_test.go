package field

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gofmm/lib/kernel"
)

func TestCacheRoundTripFft(t *testing.T) {
	dom := testDomain()
	trans, err := NewFftTranslation(kernel.Laplace3D{}, 2, dom, 1.05)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fft.m2l")
	require.NoError(t, Save(path, trans))

	loaded, err := Load(path)
	require.NoError(t, err)

	got, ok := loaded.(*FftTranslation)
	require.True(t, ok)
	require.Equal(t, trans.Order, got.Order)
	require.Equal(t, trans.CoeffSize, got.CoeffSize)
	require.Equal(t, trans.PadIdx, got.PadIdx)
	require.Equal(t, trans.ExtractIdx, got.ExtractIdx)
	for h := range trans.KernelData {
		require.Equal(t, trans.KernelData[h], got.KernelData[h])
		require.Equal(t, trans.KernelDataRearranged[h], got.KernelDataRearranged[h])
	}
}

func TestCacheRoundTripSvd(t *testing.T) {
	dom := testDomain()
	trans, err := NewSvdTranslation(kernel.Laplace3D{}, 3, 10, dom, 1.05)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "svd.m2l")
	require.NoError(t, Save(path, trans))

	loaded, err := Load(path)
	require.NoError(t, err)

	got, ok := loaded.(*SvdTranslation)
	require.True(t, ok)
	require.Equal(t, trans.Order, got.Order)
	require.Equal(t, trans.Rank, got.Rank)
	require.Equal(t, trans.TvIndex, got.TvIndex)
	require.Equal(t, trans.U.RawMatrix().Data, got.U.RawMatrix().Data)
	require.Equal(t, trans.STBlock.RawMatrix().Data, got.STBlock.RawMatrix().Data)
	for i := range trans.C {
		require.Equal(t, trans.C[i].RawMatrix().Data, got.C[i].RawMatrix().Data)
	}
}

func TestCacheMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.m2l")); err == nil {
		t.Errorf("Expected an error for a missing cache file.")
	}
}
