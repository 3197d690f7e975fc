package core_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	core "github.com/Swind/go-tickworker/core"
)

// TestScheduler_DefaultQueueOrder verifies the default queue runs work in order
// Given: A scheduler on a ManualHost
// When: Run, Consume and Supply are called and the host ticks
// Then: Actions run in submission order and the supply future resolves
func TestScheduler_DefaultQueueOrder(t *testing.T) {
	// Arrange
	s, host := newTestScheduler(t)
	var order []string

	// Act
	if err := s.Run(func(ctx context.Context) { order = append(order, "run") }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := core.Consume(s, "consume", func(ctx context.Context, v string) { order = append(order, v) }); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	future, err := core.Supply(s, func(ctx context.Context) (string, error) {
		order = append(order, "supply")
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Supply() error = %v", err)
	}

	// Assert - nothing runs before the first tick
	if len(order) != 0 {
		t.Fatalf("order before tick = %v, want empty", order)
	}

	host.Tick(context.Background())

	if !slices.Equal(order, []string{"run", "consume", "supply"}) {
		t.Errorf("order = %v, want [run consume supply]", order)
	}
	if v, ok, err := future.Result(); !ok || err != nil || v != "done" {
		t.Errorf("Result() = (%q, %v, %v), want (\"done\", true, nil)", v, ok, err)
	}
}

// TestScheduler_RegistryLifecycle verifies runNew, isPendingTasks, cancel and isReleased
// Given: A queue created with RunNew
// When: The host has not ticked, then ticks, then the id is cancelled with release
// Then: Pending is true, then false, and the id is reported released and cancelled
func TestScheduler_RegistryLifecycle(t *testing.T) {
	// Arrange
	s, host := newTestScheduler(t)
	ran := 0

	// Act
	id, err := s.RunNew(func(ctx context.Context) { ran++ })
	if err != nil {
		t.Fatalf("RunNew() error = %v", err)
	}

	// Assert
	pending, err := s.IsPendingTasks(id)
	if err != nil || !pending {
		t.Errorf("IsPendingTasks(%d) before tick = (%v, %v), want (true, nil)", id, pending, err)
	}

	host.Tick(context.Background())

	pending, err = s.IsPendingTasks(id)
	if err != nil || pending {
		t.Errorf("IsPendingTasks(%d) after tick = (%v, %v), want (false, nil)", id, pending, err)
	}
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}
	if s.IsCancelled(id) || s.IsReleased(id) {
		t.Errorf("IsCancelled = %v, IsReleased = %v before cancel; want false, false", s.IsCancelled(id), s.IsReleased(id))
	}

	s.Cancel(id, true)

	if !s.IsReleased(id) || !s.IsCancelled(id) {
		t.Errorf("after Cancel(release) IsReleased = %v, IsCancelled = %v; want true, true", s.IsReleased(id), s.IsCancelled(id))
	}
	if _, err := s.IsPendingTasks(id); !errors.Is(err, core.ErrUnknownQueue) {
		t.Errorf("IsPendingTasks() after release error = %v, want ErrUnknownQueue", err)
	}
}

// TestScheduler_RunContinueAndCanceller verifies extending and stopping a registered queue
// Given: A queue created with RunNew
// When: Work is continued by id, a canceller is added, and more work follows it
// Then: Work before the canceller runs, work after it never does, and the id reads as cancelled
func TestScheduler_RunContinueAndCanceller(t *testing.T) {
	s, host := newTestScheduler(t)
	var order []int

	id, err := s.RunNew(func(ctx context.Context) { order = append(order, 1) })
	if err != nil {
		t.Fatalf("RunNew() error = %v", err)
	}
	if err := s.RunContinue(id, func(ctx context.Context) { order = append(order, 2) }); err != nil {
		t.Fatalf("RunContinue() error = %v", err)
	}
	if err := s.AddCanceller(id); err != nil {
		t.Fatalf("AddCanceller() error = %v", err)
	}
	if err := s.RunContinue(id, func(ctx context.Context) { order = append(order, 3) }); err != nil {
		t.Fatalf("RunContinue() error = %v", err)
	}

	host.TickN(context.Background(), 3)

	if !slices.Equal(order, []int{1, 2}) {
		t.Errorf("order = %v, want [1 2]", order)
	}
	if !s.IsCancelled(id) {
		t.Error("IsCancelled() = false after the canceller ran")
	}
	if s.IsReleased(id) {
		t.Error("IsReleased() = true, canceller must not release the id")
	}
}

// TestScheduler_CancelBeforeDrain verifies cancelled work never runs
func TestScheduler_CancelBeforeDrain(t *testing.T) {
	s, host := newTestScheduler(t)
	ran := false

	id, _ := s.RunNew(func(ctx context.Context) { ran = true })
	s.Cancel(id, false)
	host.TickN(context.Background(), 2)

	if ran {
		t.Error("cancelled workload ran")
	}
	if !s.IsCancelled(id) || s.IsReleased(id) {
		t.Errorf("IsCancelled = %v, IsReleased = %v; want true, false", s.IsCancelled(id), s.IsReleased(id))
	}
	if pending, _ := s.IsPendingTasks(id); pending {
		t.Error("IsPendingTasks() = true, cancel must drop pending workloads")
	}

	// Unknown ids are ignored
	s.Cancel(999, true)
}

// TestScheduler_UnknownIDs verifies lookup failures are distinct errors
func TestScheduler_UnknownIDs(t *testing.T) {
	s, _ := newTestScheduler(t)

	if err := s.RunContinue(42, func(ctx context.Context) {}); !errors.Is(err, core.ErrUnknownQueue) {
		t.Errorf("RunContinue() error = %v, want ErrUnknownQueue", err)
	}
	if err := s.AddCanceller(42); !errors.Is(err, core.ErrUnknownQueue) {
		t.Errorf("AddCanceller() error = %v, want ErrUnknownQueue", err)
	}
	if !s.IsCancelled(42) || !s.IsReleased(42) {
		t.Error("unknown id should read as cancelled and released")
	}
}

// TestScheduler_IDsAreNotReused verifies released ids are never issued again
// Given: Two queues, the first cancelled and released
// When: A third queue is created
// Then: It gets a fresh id instead of reusing a released one or colliding with a live one
func TestScheduler_IDsAreNotReused(t *testing.T) {
	s, _ := newTestScheduler(t)
	noop := func(ctx context.Context) {}

	a, _ := s.RunNew(noop)
	b, _ := s.RunNew(noop)
	s.Cancel(a, true)
	c, _ := s.RunNew(noop)

	if c == a || c == b {
		t.Errorf("ids a=%d b=%d c=%d, want c distinct", a, b, c)
	}
	if s.IsReleased(b) {
		t.Error("live id b reported released")
	}
}

// TestScheduler_RunNewWithID verifies explicit ids replace the previous queue
func TestScheduler_RunNewWithID(t *testing.T) {
	s, host := newTestScheduler(t)
	var ran []string

	if err := s.RunNewWithID(7, 0, func(ctx context.Context) { ran = append(ran, "old") }); err != nil {
		t.Fatalf("RunNewWithID() error = %v", err)
	}
	old, _ := s.Registry().Get(7)
	if err := s.RunNewWithID(7, time.Millisecond, func(ctx context.Context) { ran = append(ran, "new") }); err != nil {
		t.Fatalf("RunNewWithID() error = %v", err)
	}
	host.Tick(context.Background())

	if !slices.Equal(ran, []string{"new"}) {
		t.Errorf("ran = %v, want [new]", ran)
	}
	if !old.IsCancelled() {
		t.Error("displaced queue was not cancelled")
	}
	next, _ := s.RunNew(func(ctx context.Context) {})
	if next <= 7 {
		t.Errorf("RunNew() id = %d, want > 7", next)
	}
}

// TestScheduler_PrepareTask verifies manual task control
// Given: A prepared task with mixed workloads
// When: It is started and ticked, then cancelled
// Then: Workloads run in order, the supplier future resolves, and Start after Cancel fails
func TestScheduler_PrepareTask(t *testing.T) {
	s, host := newTestScheduler(t)
	var order []string

	task := s.PrepareTaskWithBudget(time.Hour)
	task.AddTask(func(ctx context.Context) { order = append(order, "task") }).
		AddIndexed(3, func(ctx context.Context, i int) { order = append(order, "indexed") })
	core.AddValue(task, "v", func(ctx context.Context, v string) { order = append(order, v) })
	future := core.AddSupplier(task, func(ctx context.Context) (int, error) { return len(order), nil })

	if !task.HasWorkloads() {
		t.Fatal("HasWorkloads() = false before start")
	}
	host.Tick(context.Background())
	if len(order) != 0 {
		t.Fatalf("unstarted task ran %v", order)
	}

	if err := task.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	host.Tick(context.Background())

	if !slices.Equal(order, []string{"task", "indexed", "v"}) {
		t.Errorf("order = %v, want [task indexed v]", order)
	}
	if v, ok, _ := future.Result(); !ok || v != 3 {
		t.Errorf("supplier Result() = (%d, %v), want (3, true)", v, ok)
	}

	task.AddTask(func(ctx context.Context) { order = append(order, "late") })
	task.Cancel()
	host.Tick(context.Background())

	if !task.IsCancelled() || len(order) != 3 {
		t.Errorf("IsCancelled = %v, order = %v; want cancelled with no late work", task.IsCancelled(), order)
	}
	if n := task.Clear(); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if err := task.StartAsync(); !errors.Is(err, core.ErrQueueCancelled) {
		t.Errorf("StartAsync() after Cancel error = %v, want ErrQueueCancelled", err)
	}
}

// TestScheduler_Shutdown verifies shutdown detaches queues and rejects work
func TestScheduler_Shutdown(t *testing.T) {
	metrics := &recordingMetrics{}
	host := core.NewManualHost(nil, nil)
	s := core.NewScheduler(host, core.Config{Metrics: metrics})
	ran := false
	id, _ := s.RunNew(func(ctx context.Context) { ran = true })

	s.Shutdown()
	s.Shutdown()
	host.Tick(context.Background())

	if ran {
		t.Error("work ran after Shutdown")
	}
	if host.Registrations() != 0 {
		t.Errorf("Registrations() = %d, want 0", host.Registrations())
	}
	if !s.IsCancelled(id) {
		t.Error("registered queue not cancelled by Shutdown")
	}
	if err := s.Run(func(ctx context.Context) {}); !errors.Is(err, core.ErrSchedulerClosed) {
		t.Errorf("Run() after Shutdown error = %v, want ErrSchedulerClosed", err)
	}
	if _, err := core.PrepareLoopInt(s, 1).ForEach(func(ctx context.Context, i int) {}); !errors.Is(err, core.ErrSchedulerClosed) {
		t.Errorf("ForEach() after Shutdown error = %v, want ErrSchedulerClosed", err)
	}
	if len(metrics.rejected) != 1 {
		t.Errorf("rejections recorded = %d, want 1", len(metrics.rejected))
	}
}

// TestScheduler_SetDefaultBudget verifies budget changes reach the default queue
func TestScheduler_SetDefaultBudget(t *testing.T) {
	s, _ := newTestScheduler(t)

	s.SetDefaultBudget(10 * time.Millisecond)

	if got := s.DefaultQueue().Budget(); got != 10*time.Millisecond {
		t.Errorf("default queue budget = %v, want 10ms", got)
	}
	if got := s.PrepareTask().Queue().Budget(); got != 10*time.Millisecond {
		t.Errorf("new task budget = %v, want 10ms", got)
	}
}

// TestScheduler_Stats verifies registered queues carry their id
func TestScheduler_Stats(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, _ := s.RunNew(func(ctx context.Context) {})

	stats := s.Stats()
	if len(stats) != 2 {
		t.Fatalf("len(Stats()) = %d, want 2", len(stats))
	}
	if stats[0].Name != "default" || stats[0].RegistryID != -1 {
		t.Errorf("stats[0] = %+v, want the default queue", stats[0])
	}
	if stats[1].RegistryID != id || stats[1].Pending != 1 || stats[1].State != "attached" {
		t.Errorf("stats[1] = %+v, want registry id %d, 1 pending, attached", stats[1], id)
	}
}
