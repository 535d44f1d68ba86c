package fmm

/* loop.go contains the driver that sequences the passes. The upward pass runs
from the leaves to the root, the downward pass from level 2 to the deepest
level, and the evaluation passes finish at the leaves. P2L and M2P only fire
on adaptive trees: complete uniform trees have empty X and W lists. */

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/phil-mansfield/gofmm/lib/tree"
)

// Run evaluates the potential induced by the given charges at every input
// point. charges is indexed like the points passed to tree construction, and
// the returned potentials use the same ordering. The expansion buffers are
// reused, so Run may be called repeatedly with different charges.
func (f *Fmm) Run(charges []float64) ([]float64, error) {
	if len(charges) != len(f.Tree.Points) {
		return nil, errors.Errorf(
			"got %d charges for a tree over %d points", len(charges), len(f.Tree.Points))
	}

	for i := range f.Multipoles {
		f.Multipoles[i] = 0
	}
	for i := range f.Locals {
		f.Locals[i] = 0
	}
	for i := range f.Potentials {
		f.Potentials[i] = 0
	}
	for i, gi := range f.Tree.GlobalIndices {
		f.Charges[i] = charges[gi]
	}

	adaptive := f.Tree.Mode == tree.Adaptive

	timePass("p2m", f.p2m)
	for level := f.Tree.Depth; level >= 1; level-- {
		level := level
		timePass("m2m", func() { f.m2m(level) })
	}

	for level := 2; level <= f.Tree.Depth; level++ {
		level := level
		if level > 2 {
			timePass("l2l", func() { f.l2l(level) })
		}
		timePass("m2l", func() { f.m2l(level) })
		if adaptive {
			timePass("p2l", func() { f.p2l(level) })
		}
	}

	timePass("p2p", f.p2p)
	if adaptive {
		timePass("m2p", f.m2p)
	}
	timePass("l2p", f.l2p)

	out := make([]float64, len(charges))
	for i, gi := range f.Tree.GlobalIndices {
		out[gi] = f.Potentials[i]
	}
	return out, nil
}

func timePass(name string, pass func()) {
	start := time.Now()
	pass()
	log.WithFields(log.Fields{
		"pass": name, "ms": time.Since(start).Milliseconds(),
	}).Debug("fmm pass finished")
}
