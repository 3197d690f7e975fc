package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

const (
	// DefaultBudget is the per-invocation time budget: 2.5ms is 5% of a 50ms tick.
	DefaultBudget = 2500 * time.Microsecond

	// DefaultTickInterval matches a 20 ticks/second host loop.
	DefaultTickInterval = 50 * time.Millisecond
)

const (
	queueIdle int32 = iota
	queueAttached
	queueDetached
)

// QueueConfig configures a WorkloadQueue. Zero fields take defaults.
type QueueConfig struct {
	// Name labels the queue in logs and metrics. Defaults to "queue".
	Name string

	// Budget bounds how long one Drain keeps starting new workloads.
	// Values <= 0 mean DefaultBudget.
	Budget time.Duration

	Clock   clock.PassiveClock
	Logger  Logger
	Metrics Metrics

	// OverrunLimiter throttles the warning logged when a single drain runs
	// past twice its budget. Nil means one warning per second.
	OverrunLimiter *rate.Limiter
}

// WorkloadQueue is an unbounded FIFO of workloads drained under a time budget.
//
// A host invokes Drain at a fixed cadence once the queue is started. Each
// invocation starts workloads until the queue is empty or the budget is
// spent; the rest wait for the next invocation. The budget only gates
// starting a workload, so one long workload can overshoot it.
type WorkloadQueue struct {
	id    string
	name  string
	items *fifo[Workload]

	budget     atomic.Int64
	clock      clock.PassiveClock
	logger     Logger
	metrics    Metrics
	overrunLog *rate.Limiter

	mu           sync.Mutex
	registration RepeatingTaskHandle
	cancelled    bool
	state        atomic.Int32

	draining atomic.Int32
	executed atomic.Uint64
	drains   atomic.Uint64
}

// NewWorkloadQueue creates an idle queue; call Start to attach it to a host.
func NewWorkloadQueue(cfg QueueConfig) *WorkloadQueue {
	q := &WorkloadQueue{
		id:         uuid.NewString(),
		name:       cfg.Name,
		items:      newFIFO[Workload](),
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		overrunLog: cfg.OverrunLimiter,
	}
	if q.name == "" {
		q.name = "queue"
	}
	if q.clock == nil {
		q.clock = clock.RealClock{}
	}
	if q.logger == nil {
		q.logger = NewNoOpLogger()
	}
	if q.metrics == nil {
		q.metrics = &NilMetrics{}
	}
	if q.overrunLog == nil {
		q.overrunLog = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	q.SetBudget(cfg.Budget)
	return q
}

// ID returns the queue's unique id.
func (q *WorkloadQueue) ID() string { return q.id }

// Name returns the queue's label.
func (q *WorkloadQueue) Name() string { return q.name }

// Budget returns the current per-invocation budget.
func (q *WorkloadQueue) Budget() time.Duration {
	return time.Duration(q.budget.Load())
}

// SetBudget changes the budget used by subsequent drains.
func (q *WorkloadQueue) SetBudget(d time.Duration) {
	if d <= 0 {
		d = DefaultBudget
	}
	q.budget.Store(int64(d))
}

// Add appends a workload. It is safe to call from any goroutine, including
// from a workload currently being drained from this queue.
func (q *WorkloadQueue) Add(w Workload) {
	if w == nil {
		return
	}
	q.items.Push(w)
}

// Len returns the number of pending workloads.
func (q *WorkloadQueue) Len() int { return q.items.Len() }

// IsEmpty reports whether no workloads are pending.
func (q *WorkloadQueue) IsEmpty() bool { return q.items.IsEmpty() }

// Clear drops all pending workloads without running them and returns how
// many were dropped.
func (q *WorkloadQueue) Clear() int {
	n := q.items.Clear()
	q.metrics.RecordQueueDepth(q.name, 0)
	return n
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start registers Drain with host at the given interval and affinity.
// A detached queue may be started again unless it was cancelled.
func (q *WorkloadQueue) Start(host Host, interval time.Duration, affinity Affinity) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	q.mu.Lock()
	if q.cancelled {
		q.mu.Unlock()
		return ErrQueueCancelled
	}
	if q.state.Load() == queueAttached {
		q.mu.Unlock()
		return ErrQueueStarted
	}
	q.state.Store(queueAttached)
	q.mu.Unlock()

	// Register outside the lock: a host may invoke Drain before Every returns,
	// and a drained stop sentinel takes the lock to detach.
	reg := host.Every(interval, affinity, q.Drain)

	q.mu.Lock()
	if q.state.Load() != queueAttached {
		q.mu.Unlock()
		reg.Stop()
		return nil
	}
	q.registration = reg
	q.mu.Unlock()

	q.logger.Debug("queue started",
		F("queue", q.name),
		F("id", q.id),
		F("affinity", affinity.String()),
		F("budget", q.Budget()),
	)
	return nil
}

// Detach removes the queue from future host invocations. Pending workloads
// are kept. A drain already in progress finishes its current workload.
func (q *WorkloadQueue) Detach() {
	q.mu.Lock()
	if q.state.Load() != queueAttached {
		q.mu.Unlock()
		return
	}
	q.state.Store(queueDetached)
	reg := q.registration
	q.registration = nil
	q.mu.Unlock()

	if reg != nil {
		reg.Stop()
	}
	q.logger.Debug("queue detached", F("queue", q.name), F("id", q.id))
}

// Cancel detaches the queue and marks it cancelled. Cancelling is
// irreversible: Start returns ErrQueueCancelled afterwards.
func (q *WorkloadQueue) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	if q.state.Load() == queueIdle {
		q.state.Store(queueDetached)
	}
	q.mu.Unlock()
	q.Detach()
}

// IsCancelled reports whether Cancel was called.
func (q *WorkloadQueue) IsCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// IsAttached reports whether a host is currently invoking this queue.
func (q *WorkloadQueue) IsAttached() bool {
	return q.state.Load() == queueAttached
}

// IsDetached reports whether the queue was started and has since stopped
// (via Detach, Cancel or a stop sentinel).
func (q *WorkloadQueue) IsDetached() bool {
	return q.state.Load() == queueDetached
}

// =============================================================================
// Drain
// =============================================================================

// Drain runs queued workloads until the queue is empty, a workload asks to
// stop, or the budget elapses. It is the host's periodic entry point.
//
// Drain must not be invoked concurrently for the same queue; hosts guarantee
// this and Drain panics if the guarantee is broken. A panicking workload is
// not recovered: it has already been removed and the remaining workloads
// stay queued for the next invocation.
func (q *WorkloadQueue) Drain(ctx context.Context) {
	// Assertion: strictly one drain at a time
	if n := q.draining.Add(1); n > 1 {
		q.draining.Add(-1)
		panic(fmt.Sprintf("WorkloadQueue %s: concurrent Drain detected (count=%d)", q.name, n))
	}
	defer q.draining.Add(-1)

	if q.IsDetached() {
		return
	}

	budget := q.Budget()
	start := q.clock.Now()
	deadline := start.Add(budget)
	runCtx := context.WithValue(ctx, queueKey, q)

	executed := 0
	defer func() {
		q.recordDrain(executed, start, deadline, budget)
	}()

	for !q.IsDetached() {
		w, ok := q.items.Pop()
		if !ok {
			return
		}

		wStart := q.clock.Now()
		keep := w.compute(runCtx)
		executed++
		q.executed.Add(1)
		q.metrics.RecordWorkloadDuration(q.name, q.clock.Since(wStart))

		if !keep {
			q.Detach()
			return
		}
		if q.clock.Now().After(deadline) {
			return
		}
	}
}

func (q *WorkloadQueue) recordDrain(executed int, start, deadline time.Time, budget time.Duration) {
	q.drains.Add(1)
	if executed == 0 {
		return
	}

	now := q.clock.Now()
	elapsed := now.Sub(start)
	q.metrics.RecordDrain(q.name, executed, elapsed, now.After(deadline))
	q.metrics.RecordQueueDepth(q.name, q.items.Len())

	if elapsed > 2*budget && q.overrunLog.Allow() {
		q.logger.Warn("drain overran budget",
			F("queue", q.name),
			F("id", q.id),
			F("elapsed", elapsed),
			F("budget", budget),
			F("executed", executed),
		)
	}
}

// Stats returns a snapshot of the queue's state.
func (q *WorkloadQueue) Stats() QueueStats {
	state := "idle"
	switch q.state.Load() {
	case queueAttached:
		state = "attached"
	case queueDetached:
		state = "detached"
	}
	return QueueStats{
		RegistryID: -1,
		ID:         q.id,
		Name:       q.name,
		Pending:    q.items.Len(),
		Budget:     q.Budget(),
		State:      state,
		Cancelled:  q.IsCancelled(),
		Executed:   q.executed.Load(),
		Drains:     q.drains.Load(),
	}
}
