package discovery

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrent upstream fetches.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool that admits at most size concurrent calls.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
