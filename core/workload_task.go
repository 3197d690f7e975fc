package core

// WorkloadTask is a handle for a queue that the caller fills and controls
// by hand: start it, append workloads, append a stop sentinel, cancel.
type WorkloadTask struct {
	s *Scheduler
	q *WorkloadQueue
}

// Start attaches the queue on the main affinity.
func (t *WorkloadTask) Start() error {
	return t.start(AffinityMain)
}

// StartAsync attaches the queue on the worker affinity.
func (t *WorkloadTask) StartAsync() error {
	return t.start(AffinityWorker)
}

func (t *WorkloadTask) start(affinity Affinity) error {
	if t.s.IsClosed() {
		return ErrSchedulerClosed
	}
	if err := t.q.Start(t.s.host, t.s.tickInterval, affinity); err != nil {
		return err
	}
	t.s.track(t.q)
	return nil
}

// Add appends any workload.
func (t *WorkloadTask) Add(w Workload) *WorkloadTask {
	t.q.Add(w)
	return t
}

// AddTask appends a plain action.
func (t *WorkloadTask) AddTask(task Task) *WorkloadTask {
	if task != nil {
		t.q.Add(RunWorkload(task))
	}
	return t
}

// AddIndexed appends fn applied to i.
func (t *WorkloadTask) AddIndexed(i int, fn IntConsumer) *WorkloadTask {
	if fn != nil {
		t.q.Add(IndexWorkload(i, fn))
	}
	return t
}

// AddValue appends fn applied to value.
func AddValue[T any](t *WorkloadTask, value T, fn Consumer[T]) *WorkloadTask {
	if fn != nil {
		t.q.Add(ConsumeWorkload(value, fn))
	}
	return t
}

// AddSupplier appends a value-producing workload and returns its future.
func AddSupplier[T any](t *WorkloadTask, fn Supplier[T]) *Future[T] {
	w, f := SupplyWorkload(fn)
	t.q.Add(w)
	return f
}

// AddCanceller appends a stop sentinel: the queue detaches once the
// workloads queued before it have run.
func (t *WorkloadTask) AddCanceller() *WorkloadTask {
	t.q.Add(StopWorkload())
	return t
}

// Cancel detaches the queue for good. Pending workloads are kept; use Clear
// to drop them.
func (t *WorkloadTask) Cancel() {
	t.q.Cancel()
	t.s.untrack(t.q)
}

// IsCancelled reports whether Cancel was called.
func (t *WorkloadTask) IsCancelled() bool {
	return t.q.IsCancelled()
}

// Clear drops every pending workload.
func (t *WorkloadTask) Clear() int {
	return t.q.Clear()
}

// HasWorkloads reports whether any workload is pending.
func (t *WorkloadTask) HasWorkloads() bool {
	return !t.q.IsEmpty()
}

// Queue returns the managed queue.
func (t *WorkloadTask) Queue() *WorkloadQueue {
	return t.q
}
