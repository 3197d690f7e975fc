package cronhost

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-tickworker/core"
)

type countingPanics struct {
	mu     sync.Mutex
	values []any
}

func (c *countingPanics) HandlePanic(_ context.Context, _ string, _ int, info any, _ []byte) {
	c.mu.Lock()
	c.values = append(c.values, info)
	c.mu.Unlock()
}

func (c *countingPanics) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// TestHost_PostRecoversPanics verifies worker posts run off the caller and report panics
func TestHost_PostRecoversPanics(t *testing.T) {
	panics := &countingPanics{}
	h := New(Config{PanicHandler: panics})

	var ran atomic.Bool
	h.Post(core.AffinityWorker, func(ctx context.Context) { panic("boom") })
	h.Post(core.AffinityWorker, func(ctx context.Context) { ran.Store(true) })

	waitFor(t, time.Second, func() bool { return ran.Load() && panics.count() == 1 })
}

// TestHost_PostMainUsesRunner verifies main-affinity posts go to the main runner
func TestHost_PostMainUsesRunner(t *testing.T) {
	main := core.NewMainRunner(core.MainRunnerConfig{Name: "main"})
	defer main.Stop()
	h := New(Config{Main: main})

	var onMain atomic.Bool
	h.Post(core.AffinityMain, func(ctx context.Context) {
		onMain.Store(core.GetCurrentTaskRunner(ctx) == main)
	})

	waitFor(t, time.Second, onMain.Load)
}

// TestHost_DrivesScheduler verifies cron entries drain scheduler queues
// Given: A scheduler whose default queue is registered on a cron host
// When: Work is queued and the host started
// Then: The work runs on a later firing, and stopping the registration removes the entry
func TestHost_DrivesScheduler(t *testing.T) {
	if testing.Short() {
		t.Skip("cron fires at one-second resolution")
	}

	// Arrange
	main := core.NewMainRunner(core.MainRunnerConfig{Name: "main"})
	defer main.Stop()
	h := New(Config{Main: main})
	s := core.NewScheduler(h, core.Config{})

	var ran atomic.Bool
	if err := s.Run(func(ctx context.Context) { ran.Store(true) }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 registration for the default queue", h.Len())
	}

	// Act
	h.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	}()

	// Assert
	waitFor(t, 3*time.Second, ran.Load)
	s.Shutdown()
	if h.Len() != 0 {
		t.Errorf("Len() after Shutdown = %d, want 0", h.Len())
	}
}

func TestHost_StopHandleIsIdempotent(t *testing.T) {
	h := New(Config{})
	handle := h.Every(time.Second, core.AffinityWorker, func(ctx context.Context) {})
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}

	handle.Stop()
	handle.Stop()

	if !handle.IsStopped() || h.Len() != 0 {
		t.Errorf("after Stop: IsStopped() = %v, Len() = %d", handle.IsStopped(), h.Len())
	}
}
