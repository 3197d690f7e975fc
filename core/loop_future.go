package core

import (
	"context"
	"sync"
)

// LoopFuture resolves once a prepared loop has drained, carrying the last
// element the loop enqueued.
//
// Current exposes a progress cursor: the most recently enqueued element and
// its index. Because loops enumerate eagerly, the cursor reaches the last
// element before the first action runs; it is not an execution pointer.
//
// A loop whose queue is cancelled never resolves its future. Use Wait with a
// context deadline when cancellation is possible.
type LoopFuture[T any] struct {
	future *Future[T]
	host   Host

	mu      sync.Mutex
	current T
	index   int
	seen    bool
}

func newLoopFuture[T any](host Host) *LoopFuture[T] {
	return &LoopFuture[T]{
		future: newFuture[T](),
		host:   host,
		index:  -1,
	}
}

// CompletedLoopFuture returns a future that is already resolved empty.
// It has no host, so async continuations run on their own goroutine.
func CompletedLoopFuture[T any]() *LoopFuture[T] {
	f := newLoopFuture[T](nil)
	f.ForceComplete()
	return f
}

// advance moves the cursor to value at index.
func (f *LoopFuture[T]) advance(value T, index int) {
	f.mu.Lock()
	f.current = value
	f.index = index
	f.seen = true
	f.mu.Unlock()
}

// complete resolves with the cursor's element, or empty if nothing was enqueued.
func (f *LoopFuture[T]) complete() bool {
	f.mu.Lock()
	value, seen := f.current, f.seen
	f.mu.Unlock()
	return f.future.resolve(value, seen, nil)
}

// Current returns the most recently enqueued element and its index.
// Before anything is enqueued it returns the zero value and -1.
func (f *LoopFuture[T]) Current() (T, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.index
}

// ForceComplete resolves the future empty. It returns false if the future
// had already resolved, in which case nothing changes.
func (f *LoopFuture[T]) ForceComplete() bool {
	var zero T
	return f.future.resolve(zero, false, nil)
}

// ForceCompleteWith resolves the future with value. It returns false if the
// future had already resolved, in which case nothing changes.
func (f *LoopFuture[T]) ForceCompleteWith(value T) bool {
	return f.future.resolve(value, true, nil)
}

// Done is closed once the future resolves.
func (f *LoopFuture[T]) Done() <-chan struct{} { return f.future.Done() }

// IsDone reports whether the future has resolved.
func (f *LoopFuture[T]) IsDone() bool { return f.future.IsDone() }

// Result returns the resolved element without blocking. ok is false when the
// future is unresolved or resolved empty.
func (f *LoopFuture[T]) Result() (value T, ok bool) {
	value, ok, _ = f.future.Result()
	return value, ok
}

// Wait blocks until the future resolves or ctx is done.
func (f *LoopFuture[T]) Wait(ctx context.Context) (T, bool, error) {
	select {
	case <-f.future.Done():
		v, ok := f.Result()
		return v, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// WhenCompleteDoSync runs fn on the resolving goroutine once the future
// resolves, or immediately if it already has. The returned future resolves
// after fn returns.
func (f *LoopFuture[T]) WhenCompleteDoSync(fn func()) *Future[struct{}] {
	return f.WhenCompleteAcceptSync(func(T, bool) { fn() })
}

// WhenCompleteAcceptSync is WhenCompleteDoSync with access to the resolved
// element.
func (f *LoopFuture[T]) WhenCompleteAcceptSync(fn func(value T, ok bool)) *Future[struct{}] {
	next := newFuture[struct{}]()
	f.future.onResolve(func() {
		v, ok := f.Result()
		fn(v, ok)
		next.resolve(struct{}{}, true, nil)
	})
	return next
}

// WhenCompleteDoAsync posts fn to the host's worker affinity once the
// future resolves. The returned future resolves after fn returns.
func (f *LoopFuture[T]) WhenCompleteDoAsync(fn func()) *Future[struct{}] {
	return f.WhenCompleteAcceptAsync(func(T, bool) { fn() })
}

// WhenCompleteAcceptAsync is WhenCompleteDoAsync with access to the resolved
// element. Without a host (CompletedLoopFuture) fn runs on a new goroutine.
func (f *LoopFuture[T]) WhenCompleteAcceptAsync(fn func(value T, ok bool)) *Future[struct{}] {
	next := newFuture[struct{}]()
	f.future.onResolve(func() {
		v, ok := f.Result()
		run := func(context.Context) {
			fn(v, ok)
			next.resolve(struct{}{}, true, nil)
		}
		if f.host == nil {
			go run(context.Background())
			return
		}
		f.host.Post(AffinityWorker, run)
	})
	return next
}
