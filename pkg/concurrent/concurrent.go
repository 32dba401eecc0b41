package concurrent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// FanOut runs every job and returns once all of them have finished.
//
// jobs[0] always runs on the calling goroutine. When parallel is set the remaining jobs run
// on an errgroup in the background, otherwise they run one after another on the caller.
// Errors from all jobs are joined.
func FanOut(ctx context.Context, parallel bool, jobs ...func(context.Context) error) error {
	if len(jobs) == 0 {
		return nil
	}

	if !parallel {
		var all error
		for _, job := range jobs {
			if err := job(ctx); err != nil {
				all = errors.Join(all, err)
			}
		}
		return all
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range jobs[1:] {
		group.Go(func() error {
			return job(groupCtx)
		})
	}

	inline := jobs[0](groupCtx)
	return errors.Join(inline, group.Wait())
}

// ParallelMap applies mapFn to every element on an errgroup bounded by workers, preserving order.
func ParallelMap[T any, R any](ctx context.Context, in []T, workers int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	group, groupCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		group.SetLimit(workers)
	}

	for idx, val := range in {
		group.Go(func() error {
			r, err := mapFn(groupCtx, val)
			if err != nil {
				return err
			}
			out[idx] = r
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
