// Package workerpool runs a bounded number of goroutines over a stream of
// jobs, used by the builder to parallelize embedding batches without
// unbounded goroutine fan-out.
package workerpool

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to a Pool. index is the job's position in
// submission order, useful for writing results back into a preallocated
// slice without a mutex.
type Job func(ctx context.Context, index int) error

// Pool runs Jobs across a fixed number of worker goroutines.
type Pool struct {
	size int
}

// New creates a Pool with the given number of workers. size <= 0 is
// treated as 1.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size}
}

// Run submits n jobs (indices 0..n-1) to the pool and blocks until all have
// completed or ctx is cancelled. It returns the first error encountered;
// remaining in-flight jobs are allowed to finish (they are not forcibly
// cancelled beyond ctx propagation), but no new jobs are started once an
// error has been recorded.
func (p *Pool) Run(ctx context.Context, n int, job Job) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indices := make(chan int)
	go func() {
		defer close(indices)
		for i := 0; i < n; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		firstErr error
	)
	workers := p.size
	if workers > n {
		workers = n
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				if err := job(ctx, i); err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// RunBatches splits n items into batches of at most batchSize and runs
// batchJob once per batch across the pool, passing the batch's [start, end)
// range. This is the shape the builder uses for embedding calls, where each
// call to the provider amortizes better over a batch than one item at a time.
func (p *Pool) RunBatches(ctx context.Context, n, batchSize int, batchJob func(ctx context.Context, start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = n
	}
	numBatches := (n + batchSize - 1) / batchSize
	return p.Run(ctx, numBatches, func(ctx context.Context, i int) error {
		start := i * batchSize
		end := start + batchSize
		if end > n {
			end = n
		}
		return batchJob(ctx, start, end)
	})
}
