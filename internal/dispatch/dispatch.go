// Package dispatch fans work out to a capacity-limited collaborator with a
// bounded number of concurrent workers, isolating per-item failures.
package dispatch

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Result binds the outcome of one work item to its input position. Exactly
// one of Value/Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// Option configures a Map call.
type Option func(*options)

type options struct {
	limiter *rate.Limiter
}

// WithRateLimit applies a shared rate limiter at item admission, on top of
// the concurrency ceiling.
func WithRateLimit(l *rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// Map runs fn over items with at most limit concurrent executions. It returns
// one Result per input, in input order, after every admitted item has
// finished; physical completion order is unspecified. A failing item never
// affects other in-flight items. Context cancellation stops admitting new
// items and marks unstarted ones with the context error; results already
// produced are retained.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error), opts ...Option) ([]Result[R], error) {
	if limit <= 0 {
		return nil, eris.Errorf("dispatch: concurrency limit must be positive, got %d", limit)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]Result[R], len(items))
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, item := range items {
		// Admission point: both the semaphore and the rate limiter respect
		// cancellation, so a canceled run stops admitting work here.
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				markCanceled(results, i, err)
				break
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			markCanceled(results, i, err)
			break
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("dispatch: worker panic", zap.Int("item", i), zap.Any("panic", r))
					results[i].Err = eris.Errorf("dispatch: item %d panicked: %v", i, r)
				}
			}()

			v, err := fn(ctx, item)
			if err != nil {
				results[i].Err = err
				return
			}
			results[i].Value = v
		}(i, item)
	}

	wg.Wait()
	return results, nil
}

// markCanceled records the cancellation error for every item from idx on.
func markCanceled[R any](results []Result[R], idx int, err error) {
	for i := idx; i < len(results); i++ {
		results[i].Err = eris.Wrap(err, "dispatch: canceled before start")
	}
}

// CountFailures returns how many results carry an error.
func CountFailures[R any](results []Result[R]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
