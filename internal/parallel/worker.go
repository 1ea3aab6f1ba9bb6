// Package parallel provides the concurrency primitives used by training and
// bulk scoring.
//
// Two shapes are offered:
//   - WorkerPool with ProcessIndexed, an order-preserving fan-out/fan-in used
//     to score independent rows where one failure must not stop the others
//   - Run, a fail-fast group used to fit independent units such as trees,
//     where the first error cancels the remaining work
//
// Both honour context cancellation and default to runtime.NumCPU() workers.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPoolContext creates a worker pool that stops handing out work once
// ctx is done.
func NewWorkerPoolContext(ctx context.Context, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Context returns the pool context. It is done after Close or when the
// parent context is canceled.
func (wp *WorkerPool) Context() context.Context {
	return wp.ctx
}

// ProcessIndexed executes work items in parallel while preserving order.
// Items not started before the pool context is done keep the zero value of R,
// and ok reports which indexes were processed.
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) R,
) (results []R, ok []bool) {
	if len(items) == 0 {
		return nil, nil
	}

	itemCh := make(chan indexedItem[T], len(items))
	resultCh := make(chan indexedResult[R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < min(wp.numWorkers, len(items)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if wp.ctx.Err() != nil {
					return
				}
				resultCh <- indexedResult[R]{
					index:  item.index,
					result: worker(item.index, item.value),
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			select {
			case <-wp.ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results = make([]R, len(items))
	ok = make([]bool, len(items))
	for result := range resultCh {
		results[result.index] = result.result
		ok[result.index] = true
	}
	return results, ok
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// Run calls fn for every index in [0, n) using at most workers goroutines.
// The first error (or recovered panic) cancels the context handed to the
// remaining calls and is returned once all started calls have finished.
func Run(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if gCtx.Err() != nil {
			break
		}
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task %d panicked: %v", i, r)
				}
			}()
			if err := gCtx.Err(); err != nil {
				return err
			}
			return fn(gCtx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}

// indexedResult holds a result with its index
type indexedResult[R any] struct {
	index  int
	result R
}
