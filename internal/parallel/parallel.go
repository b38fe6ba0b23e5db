// Package parallel provides the data-parallel loop used by the per-facet
// kernels. Work is split into contiguous index ranges so each goroutine owns
// a disjoint slice of facets.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultMinChunk is the smallest range worth handing to a goroutine.
const DefaultMinChunk = 256

// For executes fn over [0, n) split into contiguous chunks, one goroutine per
// chunk. workers <= 0 uses GOMAXPROCS. Ranges of at most minChunk run inline.
func For(n, minChunk, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
