package imaging

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 4

// Pool bounds CPU-heavy image work (decode, crop, resample, encode).
type Pool struct {
	sem     *semaphore.Weighted
	workers int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), workers: workers}
}

func (p *Pool) Workers() int { return p.workers }

// Run executes fn on a pool slot. It returns ctx.Err() if no slot frees up
// before the context ends, or if the context ends while fn is still running.
// A panic inside fn is returned as an error.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		var r result
		defer func() {
			if rec := recover(); rec != nil {
				r = result{err: fmt.Errorf("imaging: worker panic: %v", rec)}
			}
			done <- r
		}()
		r.val, r.err = fn()
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}

// SplitGrid runs SplitGrid on the pool.
func (p *Pool) SplitGrid(ctx context.Context, data []byte, rows, cols int) ([][]byte, error) {
	return Run(ctx, p, func() ([][]byte, error) {
		return SplitGrid(data, rows, cols)
	})
}

// ComposeGallery runs ComposeGallery on the pool.
func (p *Pool) ComposeGallery(ctx context.Context, thumbs []Thumbnail, opts GalleryOptions) ([]byte, error) {
	return Run(ctx, p, func() ([]byte, error) {
		return ComposeGallery(thumbs, opts)
	})
}
