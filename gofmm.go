package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/phil-mansfield/gofmm/lib/binio"
	"github.com/phil-mansfield/gofmm/lib/config"
	"github.com/phil-mansfield/gofmm/lib/error"
	"github.com/phil-mansfield/gofmm/lib/field"
	"github.com/phil-mansfield/gofmm/lib/fmm"
	"github.com/phil-mansfield/gofmm/lib/kernel"
	"github.com/phil-mansfield/gofmm/lib/morton"
	"github.com/phil-mansfield/gofmm/lib/parallel"
	"github.com/phil-mansfield/gofmm/lib/tree"
)

func main() {
	if len(os.Args) < 3 {
		error.External(
			"gofmm must be run as:\n" +
				"$ gofmm <mode> <config file>\n" +
				"where <mode> is 'help', 'check', 'precompute', or 'run'.",
		)
	}
	mode, configFile := os.Args[1], os.Args[2]

	cfg, err := config.Parse(configFile)
	if err != nil {
		error.External("%s", err.Error())
	}

	switch mode {
	case "help":
		PrintHelp()
	case "check":
		Check(cfg)
	case "precompute":
		Precompute(cfg)
	case "run":
		Run(cfg)
	default:
		error.External(
			"You attempted to run gofmm in the mode '%s', but the only valid "+
				"modes are 'help', 'check', 'precompute', and 'run'.", mode,
		)
	}
}

func PrintHelp() {
	fmt.Println(`gofmm evaluates pairwise potential sums with the kernel-independent fast
multipole method.

Modes:
  check       validate the config file and exit
  precompute  build the M2L operators for the points in PointFile and write
              them to OperatorCache
  run         evaluate the potentials of ChargeFile at the points of PointFile
              and write them to PotentialFile`)
}

// Check runs gofmm's "check" mode, which tests for errors in the
// configuration file. Parsing already validated it, so there is nothing left
// to do.
func Check(cfg *config.Config) {
	fmt.Println("No errors detected.")
}

// Precompute runs gofmm's "precompute" mode, which builds the M2L operators
// for the point set and writes them to the operator cache.
func Precompute(cfg *config.Config) {
	if cfg.IO.OperatorCache == "" {
		error.External("The 'precompute' mode requires OperatorCache to be set.")
	}
	parallel.SetThreads(cfg.Fmm.Threads)

	points := readPoints(cfg.IO.PointFile)
	dom, err := morton.NewDomain(points)
	if err != nil {
		error.External("%s", err.Error())
	}

	translation := buildTranslation(cfg, dom)
	if err := field.Save(cfg.IO.OperatorCache, translation); err != nil {
		error.External("%s", err.Error())
	}
}

// Run runs gofmm's "run" mode, which evaluates the potentials.
func Run(cfg *config.Config) {
	parallel.SetThreads(cfg.Fmm.Threads)

	points := readPoints(cfg.IO.PointFile)
	charges := readFloats(cfg.IO.ChargeFile)
	if len(charges) != len(points) {
		error.External(
			"The file '%s' contains %d points, but '%s' contains %d charges.",
			cfg.IO.PointFile, len(points), cfg.IO.ChargeFile, len(charges),
		)
	}

	start := time.Now()
	t, err := tree.New(points, cfg.Fmm.Adaptive, cfg.Fmm.NCrit, cfg.Fmm.Depth)
	if err != nil {
		error.External("%s", err.Error())
	}
	log.WithFields(log.Fields{
		"points": len(points), "leaves": len(t.Leaves), "depth": t.Depth,
		"ms": time.Since(start).Milliseconds(),
	}).Info("tree built")

	start = time.Now()
	translation := loadOrBuildTranslation(cfg, t.Domain)
	log.WithFields(log.Fields{
		"scheme": cfg.Fmm.Translation, "ms": time.Since(start).Milliseconds(),
	}).Info("operators ready")

	engine, err := fmm.New(
		kernel.Laplace3D{}, t, translation,
		cfg.Fmm.Order, cfg.Fmm.AlphaInner, cfg.Fmm.AlphaOuter,
	)
	if err != nil {
		error.External("%s", err.Error())
	}

	start = time.Now()
	potentials, err := engine.Run(charges)
	if err != nil {
		error.External("%s", err.Error())
	}
	log.WithFields(log.Fields{
		"points": len(points), "ms": time.Since(start).Milliseconds(),
	}).Info("potentials evaluated")

	writeFloats(cfg.IO.PotentialFile, potentials)
}

// loadOrBuildTranslation reads the operator cache when it exists and builds
// (and caches) the operators otherwise. The cache depends on the kernel, the
// order, AlphaInner, and the domain shape, so it is only reused for runs over
// the same point distribution.
func loadOrBuildTranslation(cfg *config.Config, dom morton.Domain) field.Translation {
	if cfg.IO.OperatorCache != "" {
		if _, err := os.Stat(cfg.IO.OperatorCache); err == nil {
			translation, err := field.Load(cfg.IO.OperatorCache)
			if err != nil {
				error.External("%s", err.Error())
			}
			if translation.ExpansionOrder() != cfg.Fmm.Order {
				error.External(
					"The operator cache '%s' was computed for Order = %d, but the "+
						"config file sets Order = %d.",
					cfg.IO.OperatorCache, translation.ExpansionOrder(), cfg.Fmm.Order,
				)
			}
			return translation
		}
	}

	translation := buildTranslation(cfg, dom)
	if cfg.IO.OperatorCache != "" {
		if err := field.Save(cfg.IO.OperatorCache, translation); err != nil {
			error.External("%s", err.Error())
		}
	}
	return translation
}

func buildTranslation(cfg *config.Config, dom morton.Domain) field.Translation {
	switch cfg.Fmm.Translation {
	case "fft":
		translation, err := field.NewFftTranslation(
			kernel.Laplace3D{}, cfg.Fmm.Order, dom, cfg.Fmm.AlphaInner)
		if err != nil {
			error.External("%s", err.Error())
		}
		return translation
	case "svd":
		translation, err := field.NewSvdTranslation(
			kernel.Laplace3D{}, cfg.Fmm.Order, cfg.Fmm.SvdRank, dom, cfg.Fmm.AlphaInner)
		if err != nil {
			error.External("%s", err.Error())
		}
		return translation
	}
	error.Internal("Unrecognized translation scheme '%s' survived config "+
		"validation.", cfg.Fmm.Translation)
	return nil
}

func readPoints(fileName string) [][3]float64 {
	f, err := os.Open(fileName)
	if err != nil {
		error.External("Could not open the point file '%s': %s", fileName, err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		error.External("Could not stat the point file '%s': %s", fileName, err.Error())
	}
	if info.Size()%24 != 0 {
		error.External(
			"The point file '%s' is %d bytes long, which is not a multiple of "+
				"the 24 bytes each point takes up.", fileName, info.Size(),
		)
	}

	points := make([][3]float64, info.Size()/24)
	if err := binio.ReadAsBytes(f, points); err != nil {
		error.External("Could not read the point file '%s': %s", fileName, err.Error())
	}
	return points
}

func readFloats(fileName string) []float64 {
	f, err := os.Open(fileName)
	if err != nil {
		error.External("Could not open the charge file '%s': %s", fileName, err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		error.External("Could not stat the charge file '%s': %s", fileName, err.Error())
	}
	if info.Size()%8 != 0 {
		error.External(
			"The charge file '%s' is %d bytes long, which is not a multiple of "+
				"the 8 bytes each charge takes up.", fileName, info.Size(),
		)
	}

	x := make([]float64, info.Size()/8)
	if err := binio.ReadAsBytes(f, x); err != nil {
		error.External("Could not read the charge file '%s': %s", fileName, err.Error())
	}
	return x
}

func writeFloats(fileName string, x []float64) {
	f, err := os.Create(fileName)
	if err != nil {
		error.External("Could not create the output file '%s': %s", fileName, err.Error())
	}
	defer f.Close()

	if err := binio.WriteAsBytes(f, x); err != nil {
		error.External("Could not write the output file '%s': %s", fileName, err.Error())
	}
}
