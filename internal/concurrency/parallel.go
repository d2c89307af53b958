// Package concurrency runs independent work items on a bounded pool of
// goroutines.
package concurrency

import (
	"context"
	"sync"
)

// DefaultWorkers is used when ParallelOptions.MaxWorkers is not positive.
const DefaultWorkers = 4

// ParallelOptions configures ProcessParallel.
type ParallelOptions struct {
	// MaxWorkers caps the number of concurrent item functions.
	MaxWorkers int
}

// DefaultOptions returns the default pool size.
func DefaultOptions() ParallelOptions {
	return ParallelOptions{
		MaxWorkers: DefaultWorkers,
	}
}

type outcome[R any] struct {
	index  int
	result R
	err    error
}

// ProcessParallel calls itemFunc for every item and returns the results in
// input order. errs is indexed like items and is nil when every call
// succeeded. Items not started before ctx is done get ctx.Err().
func ProcessParallel[T any, R any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) ([]R, []error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int, len(items))
	for i := range items {
		jobs <- i
	}
	close(jobs)

	out := make(chan outcome[R], len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					out <- outcome[R]{index: i, err: err}
					continue
				}
				r, err := itemFunc(ctx, i, items[i])
				out <- outcome[R]{index: i, result: r, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]R, len(items))
	var errs []error
	for o := range out {
		results[o.index] = o.result
		if o.err != nil {
			if errs == nil {
				errs = make([]error, len(items))
			}
			errs[o.index] = o.err
		}
	}
	return results, errs
}

// FirstError returns the first non-nil error in errs.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
