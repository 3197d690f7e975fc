package tickworker

import "github.com/Swind/go-tickworker/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the tickworker package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// Consumer applies an action to one value.
type Consumer[T any] = core.Consumer[T]

// IntConsumer applies an action to one index.
type IntConsumer = core.IntConsumer

// Supplier produces a value when its workload runs.
type Supplier[T any] = core.Supplier[T]

// Predicate decides something about one loop element.
type Predicate[T any] = core.Predicate[T]

// Workload is one queued unit of work
type Workload = core.Workload

// WorkloadQueue is a FIFO of workloads drained under a time budget
type WorkloadQueue = core.WorkloadQueue

// WorkloadTask is a manually controlled queue
type WorkloadTask = core.WorkloadTask

// Future is a single-assignment result
type Future[T any] = core.Future[T]

// LoopFuture resolves with the last element of a prepared loop
type LoopFuture[T any] = core.LoopFuture[T]

// PreparedLoop is a loop over a sequence or slice
type PreparedLoop[T any] = core.PreparedLoop[T]

// IntPreparedLoop is a loop over an integer range
type IntPreparedLoop = core.IntPreparedLoop

// Scheduler owns the default queue and the id registry
type Scheduler = core.Scheduler

// Host is the periodic trigger driving queues
type Host = core.Host

// Affinity selects the main goroutine or a worker
type Affinity = core.Affinity

// Affinity constants
const (
	AffinityMain   = core.AffinityMain
	AffinityWorker = core.AffinityWorker
)

// Workload constructors
var (
	RunWorkload   = core.RunWorkload
	IndexWorkload = core.IndexWorkload
	StopWorkload  = core.StopWorkload
)

// Integer loop conditions and steps
var (
	LessThan    = core.LessThan
	GreaterThan = core.GreaterThan
	NotEqual    = core.NotEqual
	Equal       = core.Equal
	Increase    = core.Increase
	Decrease    = core.Decrease
)

// Errors
var (
	ErrNilSource       = core.ErrNilSource
	ErrNilAction       = core.ErrNilAction
	ErrLoopConsumed    = core.ErrLoopConsumed
	ErrUnknownQueue    = core.ErrUnknownQueue
	ErrQueueCancelled  = core.ErrQueueCancelled
	ErrQueueStarted    = core.ErrQueueStarted
	ErrSchedulerClosed = core.ErrSchedulerClosed
)

// GetCurrentQueue retrieves the queue draining the current workload from context
var GetCurrentQueue = core.GetCurrentQueue

// Config configures a Scheduler
type Config = core.Config

// DefaultConfig returns 50ms ticks with a 2.5ms budget
var DefaultConfig = core.DefaultConfig
