// Package tickworker spreads heavy work across the ticks of a periodic loop.
//
// Work is queued as workloads on a WorkloadQueue. A host invokes each queue
// at a fixed cadence (50ms by default) and every invocation starts workloads
// only until a small time budget (2.5ms by default) is spent; the rest waits
// for the next tick. Nothing is preempted: a workload always runs to
// completion, the budget only decides whether the next one starts.
//
// # Quick Start
//
// Initialize the global scheduler at application startup:
//
//	tickworker.InitGlobalScheduler(4) // 4 worker goroutines for async queues
//	defer tickworker.ShutdownGlobalScheduler()
//
// Queue work on the always-running default queue:
//
//	tickworker.Run(func(ctx context.Context) {
//		// runs on the main goroutine during a later tick
//	})
//
// Spread a loop over as many ticks as it needs:
//
//	loop, err := tickworker.PrepareSliceLoop(players)
//	if err != nil {
//		return err
//	}
//	future, err := loop.
//		ContinueIf(func(p Player) bool { return p.Offline }).
//		ForEach(func(ctx context.Context, p Player) { p.Save() })
//	last, ok, err := future.Wait(ctx)
//
// # Key Concepts
//
// Workload: one unit of deferred work. Plain, value, indexed and
// value-producing workloads run an action; the stop workload detaches its
// queue.
//
// Host: the periodic trigger. core.RunnerHost drives queues from goroutines
// (a dedicated main goroutine and a worker pool), core.ManualHost runs only
// when ticked, and the cronhost package drives them from robfig/cron.
//
// Registry: RunNew returns an integer id that RunContinue, AddCanceller and
// Cancel accept, so a long batch can be extended or stopped from anywhere.
//
// # Thread Safety
//
// A host never overlaps two invocations of one queue, and a queue panics if
// that contract is broken. Appending to a queue is safe from any goroutine,
// including from a workload of the same queue.
package tickworker
