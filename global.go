package tickworker

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/Swind/go-tickworker/core"
)

// =============================================================================
// Global Scheduler Helper (Singleton)
// =============================================================================

var (
	globalScheduler *core.Scheduler
	globalHost      *core.RunnerHost
	globalMu        sync.Mutex
)

// InitGlobalScheduler starts a RunnerHost with the given number of workers
// and a scheduler with the default configuration on top of it.
func InitGlobalScheduler(workers int) {
	InitGlobalSchedulerWithConfig(workers, core.DefaultConfig())
}

// InitGlobalSchedulerWithConfig is InitGlobalScheduler with an explicit
// scheduler configuration. Calling it again before shutdown does nothing.
func InitGlobalSchedulerWithConfig(workers int, cfg core.Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil {
		return // Already initialized
	}

	globalHost = NewRunnerHost(workers, cfg.Logger, cfg.Metrics)
	globalScheduler = core.NewScheduler(globalHost, cfg)
}

// NewRunnerHost creates and starts a goroutine-backed host: one main runner
// and a pool of workers. Nil logger and metrics take the core defaults.
func NewRunnerHost(workers int, logger core.Logger, metrics core.Metrics) *core.RunnerHost {
	main := core.NewMainRunner(core.MainRunnerConfig{
		Name:    "main",
		Logger:  logger,
		Metrics: metrics,
	})
	pool := core.NewWorkerPool(core.WorkerPoolConfig{
		ID:      "workers",
		Workers: workers,
		Logger:  logger,
		Metrics: metrics,
	})
	pool.Start(context.Background())
	return core.NewRunnerHost(main, pool)
}

// GetGlobalScheduler returns the global scheduler.
// It panics if InitGlobalScheduler has not been called.
func GetGlobalScheduler() *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler == nil {
		panic("GlobalScheduler not initialized. Call InitGlobalScheduler() first.")
	}
	return globalScheduler
}

// ShutdownGlobalScheduler detaches every queue and stops the host.
func ShutdownGlobalScheduler() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil {
		globalScheduler.Shutdown()
		globalHost.Shutdown()
		globalScheduler = nil
		globalHost = nil
	}
}

// =============================================================================
// Package-level wrappers over the global scheduler
// =============================================================================

// Run appends task to the default queue.
func Run(task Task) error {
	return GetGlobalScheduler().Run(task)
}

// Consume appends fn applied to value to the default queue.
func Consume[T any](value T, fn Consumer[T]) error {
	return core.Consume(GetGlobalScheduler(), value, fn)
}

// Supply appends a value-producing workload to the default queue.
func Supply[T any](fn Supplier[T]) (*Future[T], error) {
	return core.Supply(GetGlobalScheduler(), fn)
}

// RunNew starts a dedicated queue holding task and returns its id.
func RunNew(task Task) (int, error) {
	return GetGlobalScheduler().RunNew(task)
}

// RunNewWithBudget is RunNew with an explicit per-tick budget.
func RunNewWithBudget(budget time.Duration, task Task) (int, error) {
	return GetGlobalScheduler().RunNewWithBudget(budget, task)
}

// RunContinue appends task to the queue registered under id.
func RunContinue(id int, task Task) error {
	return GetGlobalScheduler().RunContinue(id, task)
}

// AddCanceller appends a stop workload to the queue registered under id.
func AddCanceller(id int) error {
	return GetGlobalScheduler().AddCanceller(id)
}

// Cancel detaches the queue under id, drops its work and optionally releases the id.
func Cancel(id int, release bool) {
	GetGlobalScheduler().Cancel(id, release)
}

// IsCancelled reports whether the queue under id will never run again.
func IsCancelled(id int) bool {
	return GetGlobalScheduler().IsCancelled(id)
}

// IsReleased reports whether id maps to no queue.
func IsReleased(id int) bool {
	return GetGlobalScheduler().IsReleased(id)
}

// IsPendingTasks reports whether the queue under id has work waiting.
func IsPendingTasks(id int) (bool, error) {
	return GetGlobalScheduler().IsPendingTasks(id)
}

// PrepareTask creates an unstarted WorkloadTask.
func PrepareTask() *WorkloadTask {
	return GetGlobalScheduler().PrepareTask()
}

// PrepareTaskWithBudget creates an unstarted WorkloadTask with a budget.
func PrepareTaskWithBudget(budget time.Duration) *WorkloadTask {
	return GetGlobalScheduler().PrepareTaskWithBudget(budget)
}

// PrepareLoop prepares a loop over seq.
func PrepareLoop[T any](seq iter.Seq[T]) (*PreparedLoop[T], error) {
	return core.PrepareLoop(GetGlobalScheduler(), seq)
}

// PrepareSliceLoop prepares a loop over items.
func PrepareSliceLoop[T any](items []T) (*PreparedLoop[T], error) {
	return core.PrepareSliceLoop(GetGlobalScheduler(), items)
}

// PrepareLoopInt prepares a loop over [0, bound).
func PrepareLoopInt(bound int) *IntPreparedLoop {
	return core.PrepareLoopInt(GetGlobalScheduler(), bound)
}

// PrepareLoopIntFrom prepares a loop over [start, bound).
func PrepareLoopIntFrom(start, bound int) *IntPreparedLoop {
	return core.PrepareLoopIntFrom(GetGlobalScheduler(), start, bound)
}

// PrepareLoopIntRange prepares a loop with a custom condition and step.
func PrepareLoopIntRange(start, bound int, cond core.IntCondition, step core.IntStep) (*IntPreparedLoop, error) {
	return core.PrepareLoopIntRange(GetGlobalScheduler(), start, bound, cond, step)
}

// ForEach runs action over items; an empty slice yields a completed future.
func ForEach[T any](items []T, action Consumer[T]) (*LoopFuture[T], error) {
	return core.ForEach(GetGlobalScheduler(), items, action)
}
