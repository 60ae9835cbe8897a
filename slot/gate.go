// Package slot serializes access to scarce model-inference resources (GPU memory).
package slot

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most n concurrent holders. A nil *Gate admits everyone.
type Gate struct {
	sem *semaphore.Weighted
	n   int64
}

func NewGate(n int64) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(n), n: n}
}

// Do runs fn while holding one slot. It returns ctx.Err() if the slot could not be acquired.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn(ctx)
}

func (g *Gate) Size() int64 {
	if g == nil {
		return 0
	}
	return g.n
}
