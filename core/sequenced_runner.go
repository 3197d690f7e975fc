package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// SequencedRunner executes its tasks one at a time, in posting order, on a
// WorkerPool. Consecutive tasks may run on different workers but never
// concurrently.
type SequencedRunner struct {
	pool      *WorkerPool
	queue     *fifo[Task]
	mu        sync.Mutex
	isRunning bool

	activeRunners atomic.Int32 // concurrency assertion
	closed        atomic.Bool
}

// NewSequencedRunner creates a runner that borrows workers from pool.
func NewSequencedRunner(pool *WorkerPool) *SequencedRunner {
	return &SequencedRunner{
		pool:  pool,
		queue: newFIFO[Task](),
	}
}

// PostTask queues task behind every task posted before it.
func (r *SequencedRunner) PostTask(task Task) {
	if r.closed.Load() {
		return
	}
	r.queue.Push(task)
	r.scheduleRunLoop()
}

// PostDelayedTask queues task after delay.
func (r *SequencedRunner) PostDelayedTask(task Task, delay time.Duration) {
	if r.closed.Load() {
		return
	}
	if delay <= 0 {
		r.PostTask(task)
		return
	}
	time.AfterFunc(delay, func() {
		r.PostTask(task)
	})
}

// PostRepeatingTask runs task now and then every interval after each run ends.
func (r *SequencedRunner) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithInitialDelay(task, 0, interval)
}

// PostRepeatingTaskWithInitialDelay runs task after initialDelay and then
// every interval after each run ends.
func (r *SequencedRunner) PostRepeatingTaskWithInitialDelay(task Task, initialDelay, interval time.Duration) RepeatingTaskHandle {
	return startRepeating(r, task, initialDelay, interval)
}

// Shutdown rejects new tasks and drops queued ones. A running task completes.
func (r *SequencedRunner) Shutdown() {
	r.closed.Store(true)

	r.mu.Lock()
	r.queue.Clear()
	r.mu.Unlock()
}

// IsClosed reports whether Shutdown was called.
func (r *SequencedRunner) IsClosed() bool {
	return r.closed.Load()
}

// Pending returns the number of queued tasks.
func (r *SequencedRunner) Pending() int {
	return r.queue.Len()
}

func (r *SequencedRunner) scheduleRunLoop() {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.mu.Unlock()
	r.pool.PostTask(r.runLoop)
}

// runLoop executes a single task and yields back to the pool if more remain.
func (r *SequencedRunner) runLoop(ctx context.Context) {
	r.runOne(ctx)

	r.mu.Lock()
	more := !r.queue.IsEmpty() && !r.closed.Load()
	if !more {
		r.isRunning = false
	}
	r.mu.Unlock()

	if more {
		r.pool.PostTask(r.runLoop)
	}
}

func (r *SequencedRunner) runOne(ctx context.Context) {
	// Assertion: strictly one goroutine at a time
	if n := r.activeRunners.Add(1); n > 1 {
		panic(fmt.Sprintf("SequencedRunner: concurrent runLoop detected (count=%d)", n))
	}
	defer r.activeRunners.Add(-1)

	if task, ok := r.queue.Pop(); ok {
		r.runTask(context.WithValue(ctx, taskRunnerKey, r), task)
	}
}

func (r *SequencedRunner) runTask(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.pool.metrics.RecordTaskPanic(r.pool.id, rec)
			r.pool.panics.HandlePanic(ctx, r.pool.id, -1, rec, debug.Stack())
		}
	}()
	task(ctx)
}
