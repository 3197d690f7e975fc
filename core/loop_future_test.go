package core_test

import (
	"context"
	"testing"
	"time"

	core "github.com/Swind/go-tickworker/core"
)

// TestLoopFuture_ForceComplete verifies resolution happens once
// Given: A prepared loop's future
// When: It is force-completed with a value and then force-completed again
// Then: The first call wins and the second reports false
func TestLoopFuture_ForceComplete(t *testing.T) {
	s, _ := newTestScheduler(t)
	loop, _ := core.PrepareSliceLoop(s, []string{"a"})
	future := loop.Future()

	if !future.ForceCompleteWith("forced") {
		t.Fatal("ForceCompleteWith() = false on first resolution")
	}
	if future.ForceComplete() {
		t.Error("ForceComplete() = true on a resolved future")
	}
	if v, ok := future.Result(); !ok || v != "forced" {
		t.Errorf("Result() = (%q, %v), want (\"forced\", true)", v, ok)
	}
}

// TestLoopFuture_SyncContinuations verifies sync callbacks before and after resolution
// Given: A loop with one continuation attached before it resolves
// When: The loop drains, then a second continuation is attached
// Then: The first runs during the drain, the second immediately, both see the last element
func TestLoopFuture_SyncContinuations(t *testing.T) {
	// Arrange
	s, host := newTestScheduler(t)
	future, err := core.PrepareLoopInt(s, 3).ForEach(func(ctx context.Context, i int) {})
	if err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}

	var before, after []int
	chained := future.WhenCompleteAcceptSync(func(v int, ok bool) {
		if ok {
			before = append(before, v)
		}
	})

	// Act
	host.Tick(context.Background())
	future.WhenCompleteAcceptSync(func(v int, ok bool) { after = append(after, v) })
	doCalled := false
	future.WhenCompleteDoSync(func() { doCalled = true })

	// Assert
	if len(before) != 1 || before[0] != 2 {
		t.Errorf("continuation before resolution saw %v, want [2]", before)
	}
	if len(after) != 1 || after[0] != 2 {
		t.Errorf("continuation after resolution saw %v, want [2]", after)
	}
	if !doCalled {
		t.Error("WhenCompleteDoSync callback did not run")
	}
	if !chained.IsDone() {
		t.Error("chained future not resolved after continuation ran")
	}
}

// TestLoopFuture_AsyncContinuationUsesHost verifies async callbacks are posted to the host
// Given: An async continuation on a loop future
// When: The loop resolves during a tick
// Then: The callback only runs on the following tick
func TestLoopFuture_AsyncContinuationUsesHost(t *testing.T) {
	s, host := newTestScheduler(t)
	future, err := core.PrepareLoopInt(s, 1).ForEach(func(ctx context.Context, i int) {})
	if err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}
	ran := false
	chained := future.WhenCompleteDoAsync(func() { ran = true })

	host.Tick(context.Background())
	if !future.IsDone() || ran {
		t.Fatalf("after first tick done = %v, ran = %v; want resolved, not yet run", future.IsDone(), ran)
	}

	host.Tick(context.Background())
	if !ran || !chained.IsDone() {
		t.Errorf("after second tick ran = %v, chained done = %v; want both true", ran, chained.IsDone())
	}
}

// TestCompletedLoopFuture verifies the pre-resolved future
func TestCompletedLoopFuture(t *testing.T) {
	f := core.CompletedLoopFuture[string]()
	if !f.IsDone() {
		t.Fatal("IsDone() = false")
	}
	if _, ok := f.Result(); ok {
		t.Error("Result() ok = true, want empty")
	}

	got := make(chan bool, 1)
	chained := f.WhenCompleteAcceptAsync(func(v string, ok bool) { got <- ok })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := chained.Wait(ctx); err != nil {
		t.Fatalf("chained Wait() error = %v", err)
	}
	if ok := <-got; ok {
		t.Error("async continuation saw ok = true, want false")
	}
}
