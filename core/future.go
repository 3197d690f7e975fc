package core

import (
	"context"
	"sync"
)

// Future is a single-assignment result cell.
//
// It resolves at most once, either with a value (ok=true), empty (ok=false),
// or with an error. Callbacks registered before resolution run on the
// resolving goroutine; callbacks registered afterwards run immediately on the
// registering goroutine.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     T
	ok        bool
	err       error
	callbacks []func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve stores the outcome and runs pending callbacks.
// It returns false if the future was already resolved.
func (f *Future[T]) resolve(value T, ok bool, err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.value = value
	f.ok = ok
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// onResolve runs cb once the future resolves.
func (f *Future[T]) onResolve(cb func()) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}

// Done is closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has resolved.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking. Before resolution it returns
// the zero value, ok=false and a nil error.
func (f *Future[T]) Result() (T, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.ok, f.err
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, _, err := f.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
