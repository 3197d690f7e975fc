package core

import (
	"context"
	"iter"
	"slices"
	"sync/atomic"
	"time"
)

// Predicate decides something about one loop element.
type Predicate[T any] func(value T) bool

// loopCore holds the state shared by every prepared loop kind: the stop and
// skip predicates, the future to resolve and the one-shot guard.
type loopCore[T any] struct {
	s          *Scheduler
	breakIf    Predicate[T]
	continueIf Predicate[T]
	future     *LoopFuture[T]
	consumed   atomic.Bool
}

func newLoopCore[T any](s *Scheduler) loopCore[T] {
	return loopCore[T]{s: s, future: newLoopFuture[T](s.host)}
}

func (c *loopCore[T]) setBreak(p Predicate[T]) { c.breakIf = p }

func (c *loopCore[T]) setContinue(p Predicate[T]) { c.continueIf = p }

func (c *loopCore[T]) alsoBreak(p Predicate[T]) { c.breakIf = and(c.breakIf, p) }

func (c *loopCore[T]) alsoContinue(p Predicate[T]) { c.continueIf = and(c.continueIf, p) }

// and returns the conjunction of prev and next; a nil side is ignored.
func and[T any](prev, next Predicate[T]) Predicate[T] {
	switch {
	case next == nil:
		return prev
	case prev == nil:
		return next
	}
	return func(v T) bool { return prev(v) && next(v) }
}

func always[T any](T) bool { return true }

// execute enumerates seq into a fresh queue and returns the loop's future.
//
// Enumeration is eager: every retained element is enqueued before the first
// action runs. With AffinityWorker the enumeration itself runs as a one-shot
// task on the host's worker affinity.
func (c *loopCore[T]) execute(
	seq iter.Seq2[int, T],
	workload func(i int, v T) Workload,
	budget time.Duration,
	affinity Affinity,
) (*LoopFuture[T], error) {
	if c.s.IsClosed() {
		return nil, ErrSchedulerClosed
	}
	if !c.consumed.CompareAndSwap(false, true) {
		return nil, ErrLoopConsumed
	}

	q := c.s.newQueue("loop", budget)
	if err := q.Start(c.s.host, c.s.tickInterval, affinity); err != nil {
		return nil, err
	}
	c.s.track(q)

	future := c.future
	stop, skip := c.breakIf, c.continueIf

	enqueue := func(context.Context) {
		for i, v := range seq {
			if skip != nil && skip(v) {
				continue
			}
			if stop != nil && stop(v) {
				break
			}
			q.Add(workload(i, v))
			future.advance(v, i)
		}
		q.Add(RunWorkload(func(context.Context) {
			future.complete()
			q.Detach()
			q.Clear()
			c.s.untrack(q)
		}))
	}

	if affinity == AffinityWorker {
		c.s.host.Post(AffinityWorker, enqueue)
	} else {
		enqueue(context.Background())
	}
	return future, nil
}

// =============================================================================
// PreparedLoop: sequences and slices
// =============================================================================

// PreparedLoop turns a sequence into one queued workload per element.
// Configure it with BreakIf/ContinueIf, then execute it once with ForEach or
// AsyncForEach.
type PreparedLoop[T any] struct {
	loopCore[T]
	source iter.Seq2[int, T]
}

// PrepareLoop prepares a loop over seq. Indexes reported by the future's
// cursor are 0-based positions in seq, counting skipped elements.
func PrepareLoop[T any](s *Scheduler, seq iter.Seq[T]) (*PreparedLoop[T], error) {
	if seq == nil {
		return nil, ErrNilSource
	}
	return &PreparedLoop[T]{loopCore: newLoopCore[T](s), source: indexed(seq)}, nil
}

// PrepareSliceLoop prepares a loop over items. A nil slice is rejected; an
// empty one yields a loop that resolves empty.
func PrepareSliceLoop[T any](s *Scheduler, items []T) (*PreparedLoop[T], error) {
	if items == nil {
		return nil, ErrNilSource
	}
	return &PreparedLoop[T]{loopCore: newLoopCore[T](s), source: slices.All(items)}, nil
}

func indexed[T any](seq iter.Seq[T]) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := 0
		for v := range seq {
			if !yield(i, v) {
				return
			}
			i++
		}
	}
}

// BreakIf sets the stop predicate, replacing any previous one. Enumeration
// ends at the first element it matches; that element is not enqueued.
func (l *PreparedLoop[T]) BreakIf(p Predicate[T]) *PreparedLoop[T] {
	l.setBreak(p)
	return l
}

// AlsoBreakIf narrows the stop predicate: the loop stops only where both the
// current predicate and p match. With no current predicate p is installed.
func (l *PreparedLoop[T]) AlsoBreakIf(p Predicate[T]) *PreparedLoop[T] {
	l.alsoBreak(p)
	return l
}

// ContinueIf sets the skip predicate, replacing any previous one.
func (l *PreparedLoop[T]) ContinueIf(p Predicate[T]) *PreparedLoop[T] {
	l.setContinue(p)
	return l
}

// AlsoContinueIf narrows the skip predicate to elements matching both.
func (l *PreparedLoop[T]) AlsoContinueIf(p Predicate[T]) *PreparedLoop[T] {
	l.alsoContinue(p)
	return l
}

// ForceBreak makes the loop stop before its first element.
func (l *PreparedLoop[T]) ForceBreak() *PreparedLoop[T] {
	l.setBreak(always[T])
	return l
}

// Future returns the loop's future, available before execution.
func (l *PreparedLoop[T]) Future() *LoopFuture[T] {
	return l.future
}

// ForEach enqueues action for every retained element on a new queue drained
// on the main affinity with the scheduler's default budget.
func (l *PreparedLoop[T]) ForEach(action Consumer[T]) (*LoopFuture[T], error) {
	return l.run(action, 0, AffinityMain)
}

// ForEachWithBudget is ForEach with an explicit per-tick budget.
func (l *PreparedLoop[T]) ForEachWithBudget(budget time.Duration, action Consumer[T]) (*LoopFuture[T], error) {
	return l.run(action, budget, AffinityMain)
}

// AsyncForEach is ForEach on the worker affinity. Enumeration also happens
// on a worker.
func (l *PreparedLoop[T]) AsyncForEach(action Consumer[T]) (*LoopFuture[T], error) {
	return l.run(action, 0, AffinityWorker)
}

// AsyncForEachWithBudget is AsyncForEach with an explicit per-tick budget.
func (l *PreparedLoop[T]) AsyncForEachWithBudget(budget time.Duration, action Consumer[T]) (*LoopFuture[T], error) {
	return l.run(action, budget, AffinityWorker)
}

func (l *PreparedLoop[T]) run(action Consumer[T], budget time.Duration, affinity Affinity) (*LoopFuture[T], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return l.execute(l.source, func(_ int, v T) Workload {
		return ConsumeWorkload(v, action)
	}, budget, affinity)
}

// ForEach runs action over items on the main affinity. An empty collection
// returns an already completed future without creating a queue; its async
// continuations still run on s's host.
func ForEach[T any](s *Scheduler, items []T, action Consumer[T]) (*LoopFuture[T], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	if len(items) == 0 {
		f := newLoopFuture[T](s.host)
		f.ForceComplete()
		return f, nil
	}
	l, err := PrepareSliceLoop(s, items)
	if err != nil {
		return nil, err
	}
	return l.ForEach(action)
}
