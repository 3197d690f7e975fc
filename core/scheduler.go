package core

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// Config configures a Scheduler.
type Config struct {
	// TickInterval is the cadence at which the host drains each queue.
	TickInterval time.Duration

	// DefaultBudget is the per-tick budget for queues created without an
	// explicit one, including the default queue.
	DefaultBudget time.Duration

	// Clock measures drain budgets. Nil means the real clock.
	Clock clock.PassiveClock

	Logger  Logger
	Metrics Metrics
}

// DefaultConfig returns 50ms ticks with a 2.5ms budget.
func DefaultConfig() Config {
	return Config{
		TickInterval:  DefaultTickInterval,
		DefaultBudget: DefaultBudget,
	}
}

// Scheduler owns the always-running default queue and the id registry, and
// creates the dedicated queues behind RunNew, prepared tasks and loops.
//
// It spawns nothing itself: every drain happens because the Host invoked it.
type Scheduler struct {
	host          Host
	tickInterval  time.Duration
	defaultBudget atomic.Int64
	clock         clock.PassiveClock
	logger        Logger
	metrics       Metrics
	overrunLog    *rate.Limiter

	def      *WorkloadQueue
	registry *Registry

	trackedMu sync.Mutex
	tracked   map[*WorkloadQueue]struct{}

	closed atomic.Bool
}

// NewScheduler creates a scheduler on host and starts its default queue on
// the main affinity.
func NewScheduler(host Host, cfg Config) *Scheduler {
	if host == nil {
		panic("core: NewScheduler requires a Host")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DefaultBudget <= 0 {
		cfg.DefaultBudget = DefaultBudget
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNoOpLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NilMetrics{}
	}

	s := &Scheduler{
		host:         host,
		tickInterval: cfg.TickInterval,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		overrunLog:   rate.NewLimiter(rate.Every(time.Second), 1),
		registry:     NewRegistry(),
		tracked:      make(map[*WorkloadQueue]struct{}),
	}
	s.defaultBudget.Store(int64(cfg.DefaultBudget))

	s.def = s.newQueue("default", 0)
	// A fresh queue can always be started
	_ = s.def.Start(host, s.tickInterval, AffinityMain)

	s.logger.Info("scheduler started",
		F("tick_interval", s.tickInterval),
		F("budget", cfg.DefaultBudget),
	)
	return s
}

// newQueue creates an idle queue sharing the scheduler's clock, logger,
// metrics and overrun limiter. A budget <= 0 means the default budget.
func (s *Scheduler) newQueue(name string, budget time.Duration) *WorkloadQueue {
	if budget <= 0 {
		budget = s.DefaultBudget()
	}
	return NewWorkloadQueue(QueueConfig{
		Name:           name,
		Budget:         budget,
		Clock:          s.clock,
		Logger:         s.logger,
		Metrics:        s.metrics,
		OverrunLimiter: s.overrunLog,
	})
}

// track remembers an attached queue that is not in the registry so Shutdown
// can detach it. Queues that detached on their own are pruned.
func (s *Scheduler) track(q *WorkloadQueue) {
	s.trackedMu.Lock()
	defer s.trackedMu.Unlock()
	for t := range s.tracked {
		if t.IsDetached() {
			delete(s.tracked, t)
		}
	}
	s.tracked[q] = struct{}{}
}

func (s *Scheduler) untrack(q *WorkloadQueue) {
	s.trackedMu.Lock()
	delete(s.tracked, q)
	s.trackedMu.Unlock()
}

// reject records work refused after Shutdown.
func (s *Scheduler) reject(op string) error {
	s.metrics.RecordTaskRejected("scheduler", "closed")
	s.logger.Warn("work rejected after shutdown", F("op", op))
	return ErrSchedulerClosed
}

// Host returns the host driving this scheduler.
func (s *Scheduler) Host() Host { return s.host }

// Registry returns the id registry.
func (s *Scheduler) Registry() *Registry { return s.registry }

// DefaultQueue returns the always-running default queue.
func (s *Scheduler) DefaultQueue() *WorkloadQueue { return s.def }

// TickInterval returns the drain cadence.
func (s *Scheduler) TickInterval() time.Duration { return s.tickInterval }

// DefaultBudget returns the budget used for queues created without one.
func (s *Scheduler) DefaultBudget() time.Duration {
	return time.Duration(s.defaultBudget.Load())
}

// SetDefaultBudget changes the default budget. The default queue picks it
// up immediately; other existing queues keep their own budget.
func (s *Scheduler) SetDefaultBudget(d time.Duration) {
	if d <= 0 {
		d = DefaultBudget
	}
	prev := time.Duration(s.defaultBudget.Swap(int64(d)))
	s.def.SetBudget(d)
	if prev != d {
		s.logger.Info("default budget changed", F("from", prev), F("to", d))
	}
}

// IsClosed reports whether Shutdown was called.
func (s *Scheduler) IsClosed() bool { return s.closed.Load() }

// =============================================================================
// Default queue
// =============================================================================

// Run appends task to the default queue.
func (s *Scheduler) Run(task Task) error {
	if task == nil {
		return ErrNilAction
	}
	if s.IsClosed() {
		return s.reject("run")
	}
	s.def.Add(RunWorkload(task))
	return nil
}

// Consume appends fn applied to value to the default queue.
func Consume[T any](s *Scheduler, value T, fn Consumer[T]) error {
	if fn == nil {
		return ErrNilAction
	}
	if s.IsClosed() {
		return s.reject("consume")
	}
	s.def.Add(ConsumeWorkload(value, fn))
	return nil
}

// Supply appends a value-producing workload to the default queue and
// returns the future it resolves.
func Supply[T any](s *Scheduler, fn Supplier[T]) (*Future[T], error) {
	if fn == nil {
		return nil, ErrNilAction
	}
	if s.IsClosed() {
		return nil, s.reject("supply")
	}
	w, f := SupplyWorkload(fn)
	s.def.Add(w)
	return f, nil
}

// Sync posts task once to the host's main affinity, bypassing any queue.
func (s *Scheduler) Sync(task Task) error {
	if task == nil {
		return ErrNilAction
	}
	if s.IsClosed() {
		return s.reject("sync")
	}
	s.host.Post(AffinityMain, task)
	return nil
}

// Async posts task once to the host's worker affinity, bypassing any queue.
func (s *Scheduler) Async(task Task) error {
	if task == nil {
		return ErrNilAction
	}
	if s.IsClosed() {
		return s.reject("async")
	}
	s.host.Post(AffinityWorker, task)
	return nil
}

// =============================================================================
// Registered queues
// =============================================================================

// RunNew starts a dedicated queue holding task and returns its id for
// RunContinue and Cancel.
func (s *Scheduler) RunNew(task Task) (int, error) {
	return s.RunNewWithBudget(0, task)
}

// RunNewWithBudget is RunNew with an explicit per-tick budget.
func (s *Scheduler) RunNewWithBudget(budget time.Duration, task Task) (int, error) {
	if task == nil {
		return 0, ErrNilAction
	}
	if s.IsClosed() {
		return 0, s.reject("run_new")
	}
	id := s.registry.allocate()
	if err := s.startRegistered(id, budget, task); err != nil {
		return 0, err
	}
	return id, nil
}

// RunNewWithID is RunNew under a caller-chosen id. A queue already stored
// under id is cancelled and cleared before being replaced.
func (s *Scheduler) RunNewWithID(id int, budget time.Duration, task Task) error {
	if task == nil {
		return ErrNilAction
	}
	if s.IsClosed() {
		return s.reject("run_new")
	}
	return s.startRegistered(id, budget, task)
}

func (s *Scheduler) startRegistered(id int, budget time.Duration, task Task) error {
	q := s.newQueue("registered", budget)
	q.Add(RunWorkload(task))
	if err := q.Start(s.host, s.tickInterval, AffinityMain); err != nil {
		return err
	}
	if prev := s.registry.Put(id, q); prev != nil {
		prev.Cancel()
		prev.Clear()
		s.logger.Debug("replaced registered queue", F("id", id), F("queue", prev.ID()))
	}
	return nil
}

// RunContinue appends task to the queue registered under id. It returns
// ErrUnknownQueue if id was never issued or has been released.
func (s *Scheduler) RunContinue(id int, task Task) error {
	if task == nil {
		return ErrNilAction
	}
	q, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	q.Add(RunWorkload(task))
	return nil
}

// AddCanceller appends a stop sentinel to the queue registered under id.
func (s *Scheduler) AddCanceller(id int) error {
	q, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	q.Add(StopWorkload())
	return nil
}

// Cancel detaches the queue registered under id and drops its pending
// workloads. With release the id is removed from the registry. Unknown ids
// are ignored.
func (s *Scheduler) Cancel(id int, release bool) {
	q, ok := s.registry.Lookup(id)
	if !ok {
		return
	}
	q.Cancel()
	dropped := q.Clear()
	if release {
		s.registry.Release(id)
	}
	s.logger.Debug("queue cancelled",
		F("id", id),
		F("dropped", dropped),
		F("released", release),
	)
}

// IsCancelled reports whether the queue under id will never run again:
// it was released, cancelled, or detached by a stop sentinel.
// A live queue that has simply drained is not cancelled; use
// IsPendingTasks to ask whether work is waiting.
func (s *Scheduler) IsCancelled(id int) bool {
	q, ok := s.registry.Lookup(id)
	if !ok {
		return true
	}
	return q.IsCancelled() || q.IsDetached()
}

// IsReleased reports whether id maps to no queue.
func (s *Scheduler) IsReleased(id int) bool {
	return !s.registry.Contains(id)
}

// IsPendingTasks reports whether the queue under id has workloads waiting.
func (s *Scheduler) IsPendingTasks(id int) (bool, error) {
	q, err := s.registry.Get(id)
	if err != nil {
		return false, err
	}
	return !q.IsEmpty(), nil
}

// =============================================================================
// Prepared tasks
// =============================================================================

// PrepareTask creates an unstarted, empty WorkloadTask with the default budget.
func (s *Scheduler) PrepareTask() *WorkloadTask {
	return s.PrepareTaskWithBudget(0)
}

// PrepareTaskWithBudget creates an unstarted, empty WorkloadTask.
func (s *Scheduler) PrepareTaskWithBudget(budget time.Duration) *WorkloadTask {
	return &WorkloadTask{s: s, q: s.newQueue("task", budget)}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Stats returns a snapshot of the default queue, every registered queue and
// every attached unregistered queue.
func (s *Scheduler) Stats() []QueueStats {
	stats := []QueueStats{s.def.Stats()}

	s.registry.Each(func(id int, q *WorkloadQueue) {
		st := q.Stats()
		st.RegistryID = id
		stats = append(stats, st)
	})

	s.trackedMu.Lock()
	for q := range s.tracked {
		if !q.IsDetached() {
			stats = append(stats, q.Stats())
		}
	}
	s.trackedMu.Unlock()

	return stats
}

// Shutdown detaches every queue the scheduler knows about and rejects new
// work. Pending workloads are left in place and never run.
func (s *Scheduler) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.def.Cancel()
	s.registry.Each(func(_ int, q *WorkloadQueue) {
		q.Cancel()
	})

	s.trackedMu.Lock()
	tracked := make([]*WorkloadQueue, 0, len(s.tracked))
	for q := range s.tracked {
		tracked = append(tracked, q)
	}
	clear(s.tracked)
	s.trackedMu.Unlock()

	for _, q := range tracked {
		q.Cancel()
	}

	s.logger.Info("scheduler shut down",
		F("registered", s.registry.Len()),
		F("tracked", len(tracked)),
	)
}
