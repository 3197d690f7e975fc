package core

import "errors"

var (
	// ErrNilSource is returned when a loop is prepared over an absent source.
	ErrNilSource = errors.New("tickworker: loop source is nil")

	// ErrNilAction is returned when a loop is executed without an action.
	ErrNilAction = errors.New("tickworker: action is nil")

	// ErrLoopConsumed is returned when a prepared loop is executed twice.
	ErrLoopConsumed = errors.New("tickworker: prepared loop already executed")

	// ErrUnknownQueue is returned for registry ids that map to no queue.
	ErrUnknownQueue = errors.New("tickworker: unknown queue id")

	// ErrQueueCancelled is returned when starting a queue that was cancelled.
	ErrQueueCancelled = errors.New("tickworker: queue is cancelled")

	// ErrQueueStarted is returned when starting a queue that is already attached.
	ErrQueueStarted = errors.New("tickworker: queue is already started")

	// ErrSchedulerClosed is returned for work submitted after Shutdown.
	ErrSchedulerClosed = errors.New("tickworker: scheduler is shut down")
)
