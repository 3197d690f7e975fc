package core

import "time"

// Host is the periodic trigger that drives workload queues.
//
// The core never spawns goroutines on its own; every drain runs because a
// Host invoked it. Implementations must never overlap two invocations of
// the same registration.
type Host interface {
	// Every invokes task at a fixed cadence on the given affinity until the
	// returned handle is stopped.
	Every(interval time.Duration, affinity Affinity, task Task) RepeatingTaskHandle

	// Post runs task once, as soon as possible, on the given affinity.
	Post(affinity Affinity, task Task)
}

// RunnerHost is a Host backed by goroutine runners: a MainRunner for
// AffinityMain and a WorkerPool for AffinityWorker.
//
// Every worker registration gets its own SequencedRunner, so distinct queues
// drain in parallel while one queue never overlaps itself.
type RunnerHost struct {
	main *MainRunner
	pool *WorkerPool
}

// NewRunnerHost wires an existing main runner and worker pool into a Host.
func NewRunnerHost(main *MainRunner, pool *WorkerPool) *RunnerHost {
	return &RunnerHost{main: main, pool: pool}
}

// Main returns the runner used for AffinityMain.
func (h *RunnerHost) Main() *MainRunner { return h.main }

// Pool returns the pool used for AffinityWorker.
func (h *RunnerHost) Pool() *WorkerPool { return h.pool }

// Every implements Host.
func (h *RunnerHost) Every(interval time.Duration, affinity Affinity, task Task) RepeatingTaskHandle {
	if affinity == AffinityWorker {
		runner := NewSequencedRunner(h.pool)
		return runner.PostRepeatingTaskWithInitialDelay(task, interval, interval)
	}
	return h.main.PostRepeatingTaskWithInitialDelay(task, interval, interval)
}

// Post implements Host.
func (h *RunnerHost) Post(affinity Affinity, task Task) {
	if affinity == AffinityWorker {
		h.pool.PostTask(task)
		return
	}
	h.main.PostTask(task)
}

// Shutdown stops the main runner and the worker pool.
func (h *RunnerHost) Shutdown() {
	h.main.Stop()
	h.pool.Stop()
}
