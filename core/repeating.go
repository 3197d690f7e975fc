package core

import (
	"context"
	"sync/atomic"
	"time"
)

// repeatingRunner is a TaskRunner that can report being shut down.
type repeatingRunner interface {
	TaskRunner
	IsClosed() bool
}

// repeatingHandle implements RepeatingTaskHandle with fixed-delay scheduling:
// the next run is posted when the current one ends, so runs never overlap.
type repeatingHandle struct {
	runner   repeatingRunner
	task     Task
	interval time.Duration
	stopped  atomic.Bool
}

func startRepeating(r repeatingRunner, task Task, initialDelay, interval time.Duration) RepeatingTaskHandle {
	h := &repeatingHandle{
		runner:   r,
		task:     task,
		interval: interval,
	}
	if initialDelay > 0 {
		r.PostDelayedTask(h.run, initialDelay)
	} else {
		r.PostTask(h.run)
	}
	return h
}

func (h *repeatingHandle) Stop() {
	h.stopped.Store(true)
}

func (h *repeatingHandle) IsStopped() bool {
	return h.stopped.Load()
}

func (h *repeatingHandle) run(ctx context.Context) {
	if h.runner.IsClosed() || h.IsStopped() {
		return
	}

	// Reschedule even if task panics; the runner recovers the panic itself
	defer func() {
		if !h.IsStopped() && !h.runner.IsClosed() {
			h.runner.PostDelayedTask(h.run, h.interval)
		}
	}()

	h.task(ctx)
}
