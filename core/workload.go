package core

import "context"

// Workload is one unit of deferred computation held by a WorkloadQueue.
//
// The set of variants is closed: build workloads with RunWorkload,
// ConsumeWorkload, IndexWorkload, SupplyWorkload or StopWorkload. compute runs
// the workload exactly once and reports whether the owning queue keeps running.
type Workload interface {
	compute(ctx context.Context) bool
}

type runWorkload struct {
	task Task
}

func (w runWorkload) compute(ctx context.Context) bool {
	w.task(ctx)
	return true
}

type consumeWorkload[T any] struct {
	value T
	fn    Consumer[T]
}

func (w consumeWorkload[T]) compute(ctx context.Context) bool {
	w.fn(ctx, w.value)
	return true
}

type indexWorkload struct {
	i  int
	fn IntConsumer
}

func (w indexWorkload) compute(ctx context.Context) bool {
	w.fn(ctx, w.i)
	return true
}

type supplyWorkload[T any] struct {
	fn     Supplier[T]
	future *Future[T]
}

func (w supplyWorkload[T]) compute(ctx context.Context) bool {
	if w.fn == nil {
		var zero T
		w.future.resolve(zero, false, ErrNilAction)
		return true
	}
	v, err := w.fn(ctx)
	w.future.resolve(v, err == nil, err)
	return true
}

type stopWorkload struct{}

func (stopWorkload) compute(context.Context) bool { return false }

// RunWorkload wraps a plain action.
func RunWorkload(task Task) Workload {
	return runWorkload{task: task}
}

// ConsumeWorkload applies fn to value when drained.
func ConsumeWorkload[T any](value T, fn Consumer[T]) Workload {
	return consumeWorkload[T]{value: value, fn: fn}
}

// IndexWorkload applies fn to the index i when drained.
func IndexWorkload(i int, fn IntConsumer) Workload {
	return indexWorkload{i: i, fn: fn}
}

// SupplyWorkload runs fn when drained and resolves the returned future with
// its result. If fn panics the future never resolves.
func SupplyWorkload[T any](fn Supplier[T]) (Workload, *Future[T]) {
	f := newFuture[T]()
	return supplyWorkload[T]{fn: fn, future: f}, f
}

// StopWorkload is the sentinel that detaches its queue when drained.
// Workloads queued behind it stay queued but are not run until the queue is
// started again.
func StopWorkload() Workload {
	return stopWorkload{}
}
