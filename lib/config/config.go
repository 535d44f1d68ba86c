/*package config contains the configuration file format of the gofmm command
line tool. Config files are INI-style:

    [fmm]
    Order = 6
    Adaptive = false
    Depth = 3
    AlphaInner = 1.05
    AlphaOuter = 2.95
    Translation = fft
    Threads = -1

    [io]
    PointFile = points.dat
    ChargeFile = charges.dat
    PotentialFile = potentials.dat

Every [fmm] variable has a usable default; the [io] files must be set
explicitly for the modes that need them.
*/
package config

import (
	"github.com/pkg/errors"
	"gopkg.in/gcfg.v1"
)

// Config holds every variable of a gofmm run.
type Config struct {
	Fmm struct {
		// Order is the expansion order: the surface grids have
		// 6*(Order-1)^2 + 2 points.
		Order int
		// Adaptive selects per-leaf refinement with at most NCrit points per
		// leaf; otherwise the tree is uniform with the given Depth.
		Adaptive bool
		Depth    int
		NCrit    int
		// AlphaInner and AlphaOuter scale the inner and outer surface grids
		// relative to their box.
		AlphaInner float64
		AlphaOuter float64
		// Translation selects the M2L scheme, "fft" or "svd".
		Translation string
		// SvdRank is the compression rank of the svd scheme. 0 picks the
		// built-in default.
		SvdRank int
		// Threads is the number of OS threads to use. -1 uses every core.
		Threads int
	}
	IO struct {
		// PointFile, ChargeFile, and PotentialFile are flat binary arrays in
		// system byte order: 3 float64s per point, 1 float64 per charge and
		// potential.
		PointFile     string
		ChargeFile    string
		PotentialFile string
		// OperatorCache, if set, is read when it exists and written after a
		// fresh precomputation.
		OperatorCache string
	}
}

// Default returns a Config with every [fmm] variable set to its default.
func Default() *Config {
	c := &Config{}
	c.Fmm.Order = 6
	c.Fmm.Adaptive = false
	c.Fmm.Depth = 3
	c.Fmm.NCrit = 150
	c.Fmm.AlphaInner = 1.05
	c.Fmm.AlphaOuter = 2.95
	c.Fmm.Translation = "fft"
	c.Fmm.SvdRank = 0
	c.Fmm.Threads = -1
	return c
}

// Parse reads fileName over the defaults and validates the result.
func Parse(fileName string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadFileInto(c, fileName); err != nil {
		return nil, errors.Wrapf(err, "could not parse config file %s", fileName)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", fileName)
	}
	return c, nil
}

// Validate checks every [fmm] variable. It does not touch the file system, so
// missing [io] files are only caught by the modes that open them.
func (c *Config) Validate() error {
	f := &c.Fmm
	switch {
	case f.Order < 2:
		return errors.Errorf("Order = %d, but the expansion order must be at least 2", f.Order)
	case !f.Adaptive && (f.Depth < 1 || f.Depth > 16):
		return errors.Errorf("Depth = %d, but uniform trees need a depth in [1, 16]", f.Depth)
	case f.Adaptive && f.NCrit < 1:
		return errors.Errorf("NCrit = %d, but adaptive trees need NCrit >= 1", f.NCrit)
	case f.AlphaInner <= 0 || f.AlphaOuter <= f.AlphaInner:
		return errors.Errorf(
			"AlphaInner = %g and AlphaOuter = %g, but 0 < AlphaInner < AlphaOuter is required",
			f.AlphaInner, f.AlphaOuter)
	case f.Translation != "fft" && f.Translation != "svd":
		return errors.Errorf(
			"Translation = %q, but the only valid schemes are 'fft' and 'svd'", f.Translation)
	case f.SvdRank < 0:
		return errors.Errorf("SvdRank = %d, but the rank cannot be negative", f.SvdRank)
	case f.Threads != -1 && f.Threads < 1:
		return errors.Errorf("Threads = %d, but Threads must be positive or -1", f.Threads)
	}
	return nil
}
