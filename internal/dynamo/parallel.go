package dynamo

import (
	"runtime"
	"sync"
)

// DefaultWorkers bounds the fan-out of ParallelFor.
var DefaultWorkers = min(runtime.NumCPU(), 4)

// ParallelFor executes a function in parallel over a range [0, n).
// Every index is visited exactly once and chunks never overlap, so fn may
// write to per-index storage without locking.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	ParallelForWorkers(n, minChunk, DefaultWorkers, fn)
}

func ParallelForWorkers(n, minChunk, numWorkers int, fn func(start, end int)) {
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
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
