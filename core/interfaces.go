package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task or a drained workload panics.
// Runners and hosts recover the panic and hand it here; queues never recover.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - runnerName: The name of the runner or host where the panic occurred
	// - workerID: The ID of the worker (-1 for single-goroutine runners)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger("error")
	}
	logger.Error("task panicked",
		F("runner", runnerName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; RecordWorkloadDuration runs once per
// drained workload.
type Metrics interface {
	// RecordWorkloadDuration records how long a single workload took.
	RecordWorkloadDuration(queueName string, duration time.Duration)

	// RecordDrain records one drain invocation: how many workloads ran, how long
	// the invocation took and whether it ended past its deadline.
	RecordDrain(queueName string, executed int, elapsed time.Duration, overBudget bool)

	// RecordQueueDepth records the pending workload count after a drain or append.
	RecordQueueDepth(queueName string, depth int)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordTaskRejected records that work was rejected (e.g., after shutdown).
	RecordTaskRejected(runnerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordWorkloadDuration(queueName string, duration time.Duration) {}

func (m *NilMetrics) RecordDrain(queueName string, executed int, elapsed time.Duration, overBudget bool) {
}

func (m *NilMetrics) RecordQueueDepth(queueName string, depth int) {}

func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any) {}

func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string) {}
