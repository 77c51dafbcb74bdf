package gateway

import (
	"context"
	"sync"
)

// deferred is a single-assignment asynchronous cell. It starts pending and
// transitions exactly once to a value or an error; whichever outcome arrives
// first wins and later attempts are no-ops. Any number of observers may
// Await, before or after the transition.
type deferred[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newDeferred[T any]() *deferred[T] {
	return &deferred[T]{done: make(chan struct{})}
}

func (d *deferred[T]) resolve(v T) {
	d.once.Do(func() {
		d.val = v
		close(d.done)
	})
}

func (d *deferred[T]) fail(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// pending reports whether the cell has not yet reached a terminal state.
func (d *deferred[T]) pending() bool {
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// await blocks until the cell is terminal or ctx is cancelled.
func (d *deferred[T]) await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
