package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/groundwork/core"
)

// fanOut runs fn for every item on a bounded ants pool. Results keep item
// order; failed items are logged and returned as BatchItemErrors without
// cancelling their siblings.
func fanOut(ctx context.Context, workers int, items []string, logger *slog.Logger,
	fn func(ctx context.Context, item string) ([]core.LoadedRecord, error),
) ([][]core.LoadedRecord, []*core.BatchItemError, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([][]core.LoadedRecord, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, item)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var failures []*core.BatchItemError
	for i, err := range errs {
		if err == nil {
			continue
		}
		logger.Warn("batch item failed", "item", items[i], "err", err)
		failures = append(failures, core.NewBatchItemError(items[i], err))
	}
	return results, failures, nil
}
