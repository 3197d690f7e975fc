package tickworker_test

import (
	"context"
	"fmt"

	tickworker "github.com/Swind/go-tickworker"
	"github.com/Swind/go-tickworker/core"
)

// ExamplePrepareLoopInt spreads an integer loop over the global scheduler.
func ExamplePrepareLoopInt() {
	tickworker.InitGlobalScheduler(2)
	defer tickworker.ShutdownGlobalScheduler()

	future, err := tickworker.PrepareLoopInt(5).
		ContinueIf(func(i int) bool { return i%2 == 1 }).
		ForEach(func(ctx context.Context, i int) {
			fmt.Println("visit", i)
		})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	last, ok, _ := future.Wait(context.Background())
	fmt.Println("last", last, ok)

	// Output:
	// visit 0
	// visit 2
	// visit 4
	// last 4 true
}

// Example_manualHost drives a scheduler one tick at a time.
func Example_manualHost() {
	host := core.NewManualHost(nil, nil)
	s := core.NewScheduler(host, core.DefaultConfig())
	defer s.Shutdown()

	loop, _ := core.PrepareSliceLoop(s, []string{"a", "b", "c", "d"})
	future, _ := loop.
		BreakIf(func(v string) bool { return v == "c" }).
		ForEach(func(ctx context.Context, v string) { fmt.Println("visit", v) })

	future.WhenCompleteAcceptSync(func(v string, ok bool) {
		fmt.Println("done with", v)
	})

	host.Tick(context.Background())

	// Output:
	// visit a
	// visit b
	// done with b
}
