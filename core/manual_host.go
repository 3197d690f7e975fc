package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ManualHost is a Host that only runs when Tick is called.
//
// It suits tests and applications that already own a frame or game loop:
// call Tick once per frame and every registered queue drains once. Intervals
// and affinities are recorded but ignored; everything runs on the goroutine
// calling Tick.
type ManualHost struct {
	mu       sync.Mutex
	regs     []*manualRegistration
	oneShots *fifo[Task]
	ticking  sync.Mutex

	name    string
	panics  PanicHandler
	metrics Metrics
	ticks   atomic.Uint64
}

type manualRegistration struct {
	interval time.Duration
	affinity Affinity
	task     Task
	stopped  atomic.Bool
}

func (r *manualRegistration) Stop()           { r.stopped.Store(true) }
func (r *manualRegistration) IsStopped() bool { return r.stopped.Load() }

// NewManualHost creates a ManualHost. A nil handler discards panics after
// counting them through metrics; a nil metrics uses NilMetrics.
func NewManualHost(panics PanicHandler, metrics Metrics) *ManualHost {
	if metrics == nil {
		metrics = &NilMetrics{}
	}
	return &ManualHost{
		oneShots: newFIFO[Task](),
		name:     "manual",
		panics:   panics,
		metrics:  metrics,
	}
}

// Every implements Host.
func (h *ManualHost) Every(interval time.Duration, affinity Affinity, task Task) RepeatingTaskHandle {
	reg := &manualRegistration{interval: interval, affinity: affinity, task: task}
	h.mu.Lock()
	h.regs = append(h.regs, reg)
	h.mu.Unlock()
	return reg
}

// Post implements Host. The task runs at the start of the next Tick.
func (h *ManualHost) Post(_ Affinity, task Task) {
	h.oneShots.Push(task)
}

// Tick runs every posted one-shot task (including ones posted while
// ticking), then invokes each live registration once in registration order.
// Registrations added during a tick first run on the next tick.
func (h *ManualHost) Tick(ctx context.Context) {
	h.ticking.Lock()
	defer h.ticking.Unlock()

	for {
		task, ok := h.oneShots.Pop()
		if !ok {
			break
		}
		h.invoke(ctx, task)
	}

	for _, reg := range h.live() {
		if reg.IsStopped() {
			continue
		}
		h.invoke(ctx, reg.task)
	}
	h.ticks.Add(1)
}

// TickN calls Tick n times.
func (h *ManualHost) TickN(ctx context.Context, n int) {
	for range n {
		h.Tick(ctx)
	}
}

// TickUntil ticks until cond returns true or maxTicks is reached, and
// reports whether cond became true.
func (h *ManualHost) TickUntil(ctx context.Context, maxTicks int, cond func() bool) bool {
	for range maxTicks {
		if cond() {
			return true
		}
		h.Tick(ctx)
	}
	return cond()
}

// Registrations returns the number of live registrations.
func (h *ManualHost) Registrations() int {
	return len(h.live())
}

// Ticks returns how many times Tick completed.
func (h *ManualHost) Ticks() uint64 {
	return h.ticks.Load()
}

// live returns the non-stopped registrations and prunes stopped ones.
func (h *ManualHost) live() []*manualRegistration {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.regs[:0]
	for _, reg := range h.regs {
		if !reg.IsStopped() {
			kept = append(kept, reg)
		}
	}
	clear(h.regs[len(kept):])
	h.regs = kept

	out := make([]*manualRegistration, len(kept))
	copy(out, kept)
	return out
}

func (h *ManualHost) invoke(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			h.metrics.RecordTaskPanic(h.name, rec)
			if h.panics != nil {
				h.panics.HandlePanic(ctx, h.name, -1, rec, debug.Stack())
			}
		}
	}()
	task(ctx)
}

func (h *ManualHost) String() string {
	return fmt.Sprintf("ManualHost(registrations=%d, ticks=%d)", h.Registrations(), h.Ticks())
}
