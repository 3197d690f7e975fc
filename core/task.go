package core

import (
	"context"
	"time"
)

// Task is the unit of work posted to runners and hosts (Closure)
type Task func(ctx context.Context)

// Consumer is a single-argument action applied to one loop element.
type Consumer[T any] func(ctx context.Context, value T)

// IntConsumer is an action applied to one integer index.
type IntConsumer func(ctx context.Context, i int)

// Supplier produces a value (or an error) when its workload is drained.
type Supplier[T any] func(ctx context.Context) (T, error)

// =============================================================================
// Affinity: where a host runs a task
// =============================================================================

type Affinity int

const (
	// AffinityMain runs on the host's single designated goroutine ("sync").
	AffinityMain Affinity = iota

	// AffinityWorker runs on a separate worker goroutine ("async").
	AffinityWorker
)

func (a Affinity) String() string {
	switch a {
	case AffinityMain:
		return "main"
	case AffinityWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// =============================================================================
// TaskRunner: task submission interface
// =============================================================================

type TaskRunner interface {
	PostTask(task Task)
	PostDelayedTask(task Task, delay time.Duration)
}

// RepeatingTaskHandle controls the lifecycle of a repeating task.
type RepeatingTaskHandle interface {
	// Stop prevents any further executions. A run already in progress completes.
	Stop()
	IsStopped() bool
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the current task, if any.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}

type queueKeyType struct{}

var queueKey queueKeyType

// GetCurrentQueue returns the WorkloadQueue being drained, if the context
// belongs to a workload.
func GetCurrentQueue(ctx context.Context) *WorkloadQueue {
	if v := ctx.Value(queueKey); v != nil {
		return v.(*WorkloadQueue)
	}
	return nil
}
