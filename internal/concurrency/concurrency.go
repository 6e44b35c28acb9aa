// Package concurrency holds the low-level pool and channel helpers shared
// by the dispatcher.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a pool bounded at maxGoroutines where each task respects
// context cancellation. Tasks are independent: one task's error must never
// cancel its siblings, so the pool deliberately does not cancel on error.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithMaxGoroutines(maxGoroutines)
}

// TrySendThroughChannel attempts to send an object through a channel.
// If the context is canceled, it will not send the object. Workers that
// outlive a batch deadline use this so their late results are dropped
// instead of blocking forever on an abandoned channel.
func TrySendThroughChannel[T any](ctx context.Context, msg T, channel chan<- T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case channel <- msg:
		return true
	}
}
