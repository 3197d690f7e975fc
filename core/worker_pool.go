package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPoolConfig configures a WorkerPool.
type WorkerPoolConfig struct {
	ID           string
	Workers      int
	Logger       Logger
	PanicHandler PanicHandler
	Metrics      Metrics
}

// WorkerPool runs posted tasks on a fixed set of worker goroutines.
// Tasks are pulled in FIFO order; there is no ordering between workers.
type WorkerPool struct {
	id      string
	workers int
	queue   *fifo[Task]
	signal  chan struct{}

	logger  Logger
	panics  PanicHandler
	metrics Metrics

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex

	shuttingDown atomic.Bool
	active       atomic.Int32
}

// NewWorkerPool creates a pool. Call Start to spawn the workers.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &WorkerPool{
		id:      cfg.ID,
		workers: cfg.Workers,
		queue:   newFIFO[Task](),
		signal:  make(chan struct{}, cfg.Workers*2),
		logger:  cfg.Logger,
		panics:  cfg.PanicHandler,
		metrics: cfg.Metrics,
	}
	if p.id == "" {
		p.id = "workers"
	}
	if p.logger == nil {
		p.logger = NewNoOpLogger()
	}
	if p.panics == nil {
		p.panics = &DefaultPanicHandler{Logger: p.logger}
	}
	if p.metrics == nil {
		p.metrics = &NilMetrics{}
	}
	return p
}

// Start spawns the workers. Calling Start on a running pool does nothing.
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return
	}

	var poolCtx context.Context
	poolCtx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.shuttingDown.Store(false)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(poolCtx, i)
	}
	p.logger.Debug("worker pool started", F("pool", p.id), F("workers", p.workers))
}

// Stop rejects new tasks, drops queued ones and waits for running tasks.
func (p *WorkerPool) Stop() {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.running = false
	p.runningMu.Unlock()

	p.shuttingDown.Store(true)
	dropped := p.queue.Clear()
	p.cancel()
	p.wg.Wait()

	p.logger.Debug("worker pool stopped", F("pool", p.id), F("dropped", dropped))
}

// ID returns the pool id.
func (p *WorkerPool) ID() string { return p.id }

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int { return p.workers }

// IsRunning reports whether the workers are running.
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// PostTask queues task for any worker.
func (p *WorkerPool) PostTask(task Task) {
	if p.shuttingDown.Load() {
		p.metrics.RecordTaskRejected(p.id, "shutting down")
		return
	}
	p.queue.Push(task)
	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full; the task is queued and a busy worker will find it
	}
}

// PostDelayedTask queues task after delay.
func (p *WorkerPool) PostDelayedTask(task Task, delay time.Duration) {
	if p.shuttingDown.Load() {
		return
	}
	if delay <= 0 {
		p.PostTask(task)
		return
	}
	time.AfterFunc(delay, func() {
		p.PostTask(task)
	})
}

// Stats returns a snapshot of the pool's state.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ID:      p.id,
		Workers: p.workers,
		Queued:  p.queue.Len(),
		Active:  int(p.active.Load()),
		Running: p.IsRunning(),
	}
}

func (p *WorkerPool) getWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if task, ok := p.queue.Pop(); ok {
			return task, true
		}

		select {
		case <-p.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (p *WorkerPool) workerLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := p.getWork(stopCh)
		if !ok {
			return
		}
		p.runTask(ctx, id, task)
	}
}

func (p *WorkerPool) runTask(ctx context.Context, id int, task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			p.metrics.RecordTaskPanic(p.id, rec)
			p.panics.HandlePanic(ctx, p.id, id, rec, debug.Stack())
		}
	}()
	task(ctx)
}
