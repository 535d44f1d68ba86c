/*package parallel contains helpers for the chunked data-parallel loops used
by the translation passes. Each pass partitions its target boxes into disjoint
index ranges, so the workers never write to the same memory and no locking is
needed.*/
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SetThreads sets the number of OS threads that parallel loops may use. n = -1
// uses every core on the node.
func SetThreads(n int) {
	if n == -1 {
		n = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(n)
}

// FindChunkSize returns the largest chunk size that is at most maxChunk and
// divides n evenly. It falls back to 1 for awkward n, which keeps every chunk
// the same size at the cost of parallel overhead.
func FindChunkSize(n, maxChunk int) int {
	if n == 0 {
		return 1
	}
	if maxChunk > n {
		maxChunk = n
	}
	for size := maxChunk; size > 1; size-- {
		if n%size == 0 {
			return size
		}
	}
	return 1
}

// For runs fn over the half-open ranges [lo, hi) that partition [0, n) into
// chunks of chunkSize (the final chunk may be smaller). Calls to fn run
// concurrently on up to GOMAXPROCS goroutines, so fn must only write to state
// owned by its own index range.
func For(n, chunkSize int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	group := &errgroup.Group{}
	group.SetLimit(runtime.GOMAXPROCS(0))

	for lo := 0; lo < n; lo += chunkSize {
		lo, hi := lo, lo+chunkSize
		if hi > n {
			hi = n
		}
		group.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}

	// The workers never return errors: failures inside a pass are invariant
	// violations and panic instead.
	_ = group.Wait()
}
