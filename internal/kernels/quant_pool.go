package kernels

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var iqkQuantWorkers = envInt("BITNET_IQK_QUANT_WORKERS", 0)

// ParallelRows invokes fn once for every row index in [0, nrows), fanning
// out across a bounded worker pool. Each row is an independent leaf task
// (quantization has no cross-row state per §5); fn must only touch the
// caller-provided slice belonging to its own row. The first error returned
// by any row aborts the remaining rows and is propagated to the caller.
func ParallelRows(nrows int, fn func(row int) error) error {
	if nrows <= 0 {
		return nil
	}
	workers := iqkQuantWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nrows {
		workers = nrows
	}
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for row := 0; row < nrows; row++ {
		row := row
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return fn(row)
		})
	}
	return g.Wait()
}
