package imagecodec

import (
	"runtime"
	"sync"
)

// parallelFor runs fn(y) for every y in [0, n) on up to GOMAXPROCS workers. Rows are
// handed out by striding so uneven rows balance out.
func parallelFor(n int, fn func(y int)) {
	if n <= 0 {
		return
	}
	workers := min(runtime.GOMAXPROCS(0), n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for y := w; y < n; y += workers {
				fn(y)
			}
		}()
	}
	wg.Wait()
}
