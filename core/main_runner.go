package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// MainRunnerConfig configures a MainRunner.
type MainRunnerConfig struct {
	Name         string
	Logger       Logger
	PanicHandler PanicHandler
	Metrics      Metrics
}

// MainRunner binds a dedicated goroutine that executes tasks one by one.
// It is the "main thread" of a RunnerHost: everything posted with
// AffinityMain runs on this goroutine, in posting order.
//
// The backlog is unbounded, so a task running on the main goroutine may post
// more main tasks without blocking itself.
type MainRunner struct {
	name    string
	queue   *fifo[Task]
	signal  chan struct{}
	logger  Logger
	panics  PanicHandler
	metrics Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	closed  atomic.Bool

	running  atomic.Int32
	rejected atomic.Int64
}

// NewMainRunner creates and starts a MainRunner.
func NewMainRunner(cfg MainRunnerConfig) *MainRunner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &MainRunner{
		name:    cfg.Name,
		queue:   newFIFO[Task](),
		signal:  make(chan struct{}, 1),
		logger:  cfg.Logger,
		panics:  cfg.PanicHandler,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	if r.name == "" {
		r.name = "main"
	}
	if r.logger == nil {
		r.logger = NewNoOpLogger()
	}
	if r.panics == nil {
		r.panics = &DefaultPanicHandler{Logger: r.logger}
	}
	if r.metrics == nil {
		r.metrics = &NilMetrics{}
	}

	go r.runLoop()
	return r
}

// Name returns the runner's name.
func (r *MainRunner) Name() string { return r.name }

// PostTask queues task for execution on the main goroutine.
func (r *MainRunner) PostTask(task Task) {
	if r.closed.Load() {
		r.rejected.Add(1)
		r.metrics.RecordTaskRejected(r.name, "closed")
		return
	}
	r.queue.Push(task)
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// PostDelayedTask queues task after delay.
// time.AfterFunc keeps the timer independent of the runner's backlog.
func (r *MainRunner) PostDelayedTask(task Task, delay time.Duration) {
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
func (r *MainRunner) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithInitialDelay(task, 0, interval)
}

// PostRepeatingTaskWithInitialDelay runs task after initialDelay and then
// every interval after each run ends.
func (r *MainRunner) PostRepeatingTaskWithInitialDelay(task Task, initialDelay, interval time.Duration) RepeatingTaskHandle {
	return startRepeating(r, task, initialDelay, interval)
}

// IsClosed reports whether Stop was called.
func (r *MainRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop rejects new tasks and waits for the task in progress to finish.
// Queued tasks that have not started are dropped.
func (r *MainRunner) Stop() {
	r.once.Do(func() {
		r.closed.Store(true)
		r.cancel()
		<-r.stopped
		if n := r.queue.Clear(); n > 0 {
			r.logger.Debug("main runner dropped queued tasks", F("runner", r.name), F("dropped", n))
		}
	})
}

// WaitIdle blocks until every task posted before the call has run.
// Repeating tasks keep repeating and are not waited for.
func (r *MainRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return fmt.Errorf("runner %s is closed", r.name)
	}

	done := make(chan struct{})
	r.PostTask(func(context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the runner's state.
func (r *MainRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:     r.name,
		Type:     "main",
		Pending:  r.queue.Len(),
		Running:  int(r.running.Load()),
		Rejected: r.rejected.Load(),
		Closed:   r.IsClosed(),
	}
}

func (r *MainRunner) runLoop() {
	defer close(r.stopped)

	runCtx := context.WithValue(r.ctx, taskRunnerKey, r)

	for {
		task, ok := r.queue.Pop()
		if !ok {
			select {
			case <-r.signal:
				continue
			case <-r.ctx.Done():
				return
			}
		}

		if r.ctx.Err() != nil {
			return
		}
		r.runTask(runCtx, task)
	}
}

func (r *MainRunner) runTask(ctx context.Context, task Task) {
	r.running.Add(1)
	defer r.running.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordTaskPanic(r.name, rec)
			r.panics.HandlePanic(ctx, r.name, -1, rec, debug.Stack())
		}
	}()
	task(ctx)
}
