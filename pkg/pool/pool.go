package pool

import (
	"context"
	"sync"
)

// WorkerFunc defines the function signature for a worker that processes a single item.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// Run fans a slice of items out over numWorkers goroutines and blocks until
// every queued item has been processed or the context is cancelled.
// It returns the errors the workers reported, in no particular order.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []error {
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan T)

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		allErrs []error
	)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if ctx.Err() != nil {
					return
				}
				if err := workerFunc(ctx, item); err != nil {
					errMu.Lock()
					allErrs = append(allErrs, err)
					errMu.Unlock()
				}
			}
		}()
	}

	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			// Stop feeding once the context is cancelled; in-flight items finish.
			close(jobs)
			wg.Wait()
			return allErrs
		}
	}
	close(jobs)

	wg.Wait()
	return allErrs
}
