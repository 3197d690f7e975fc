package core

import (
	"iter"
	"time"
)

// IntCondition decides whether an integer loop continues with current.
type IntCondition func(current, bound int) bool

// IntStep computes the next loop value from the current one.
type IntStep func(current int) int

// LessThan continues while current < bound.
func LessThan(current, bound int) bool { return current < bound }

// GreaterThan continues while current > bound.
func GreaterThan(current, bound int) bool { return current > bound }

// NotEqual continues while current != bound.
func NotEqual(current, bound int) bool { return current != bound }

// Equal continues while current == bound.
func Equal(current, bound int) bool { return current == bound }

// Increase steps up by n.
func Increase(n int) IntStep {
	return func(current int) int { return current + n }
}

// Decrease steps down by n.
func Decrease(n int) IntStep {
	return func(current int) int { return current - n }
}

// IntPreparedLoop is a prepared loop over a synthetic integer range, the
// queued equivalent of for i := start; cond(i, bound); i = step(i).
//
// Enumeration is eager, so a condition that never fails (NotEqual with a step
// that jumps over bound) never returns from ForEach.
type IntPreparedLoop struct {
	loopCore[int]
	start int
	bound int
	cond  IntCondition
	step  IntStep
}

// PrepareLoopInt prepares for i := 0; i < bound; i++.
func PrepareLoopInt(s *Scheduler, bound int) *IntPreparedLoop {
	return PrepareLoopIntFrom(s, 0, bound)
}

// PrepareLoopIntFrom prepares for i := start; i < bound; i++.
func PrepareLoopIntFrom(s *Scheduler, start, bound int) *IntPreparedLoop {
	return &IntPreparedLoop{
		loopCore: newLoopCore[int](s),
		start:    start,
		bound:    bound,
		cond:     LessThan,
		step:     Increase(1),
	}
}

// PrepareLoopIntRange prepares a loop with a custom condition and step.
func PrepareLoopIntRange(s *Scheduler, start, bound int, cond IntCondition, step IntStep) (*IntPreparedLoop, error) {
	if cond == nil || step == nil {
		return nil, ErrNilSource
	}
	return &IntPreparedLoop{
		loopCore: newLoopCore[int](s),
		start:    start,
		bound:    bound,
		cond:     cond,
		step:     step,
	}, nil
}

// SetBound changes the bound before the loop executes.
func (l *IntPreparedLoop) SetBound(bound int) *IntPreparedLoop {
	l.bound = bound
	return l
}

// Bound returns the current bound.
func (l *IntPreparedLoop) Bound() int { return l.bound }

// BreakIf sets the stop predicate, replacing any previous one.
func (l *IntPreparedLoop) BreakIf(p Predicate[int]) *IntPreparedLoop {
	l.setBreak(p)
	return l
}

// AlsoBreakIf narrows the stop predicate to values matching both.
func (l *IntPreparedLoop) AlsoBreakIf(p Predicate[int]) *IntPreparedLoop {
	l.alsoBreak(p)
	return l
}

// ContinueIf sets the skip predicate, replacing any previous one.
func (l *IntPreparedLoop) ContinueIf(p Predicate[int]) *IntPreparedLoop {
	l.setContinue(p)
	return l
}

// AlsoContinueIf narrows the skip predicate to values matching both.
func (l *IntPreparedLoop) AlsoContinueIf(p Predicate[int]) *IntPreparedLoop {
	l.alsoContinue(p)
	return l
}

// ForceBreak makes the loop stop before its first value.
func (l *IntPreparedLoop) ForceBreak() *IntPreparedLoop {
	l.setBreak(always[int])
	return l
}

// Future returns the loop's future, available before execution.
func (l *IntPreparedLoop) Future() *LoopFuture[int] {
	return l.future
}

// ForEach enqueues action for every retained value on the main affinity.
func (l *IntPreparedLoop) ForEach(action IntConsumer) (*LoopFuture[int], error) {
	return l.run(action, 0, AffinityMain)
}

// ForEachWithBudget is ForEach with an explicit per-tick budget.
func (l *IntPreparedLoop) ForEachWithBudget(budget time.Duration, action IntConsumer) (*LoopFuture[int], error) {
	return l.run(action, budget, AffinityMain)
}

// AsyncForEach is ForEach on the worker affinity.
func (l *IntPreparedLoop) AsyncForEach(action IntConsumer) (*LoopFuture[int], error) {
	return l.run(action, 0, AffinityWorker)
}

// AsyncForEachWithBudget is AsyncForEach with an explicit per-tick budget.
func (l *IntPreparedLoop) AsyncForEachWithBudget(budget time.Duration, action IntConsumer) (*LoopFuture[int], error) {
	return l.run(action, budget, AffinityWorker)
}

func (l *IntPreparedLoop) run(action IntConsumer, budget time.Duration, affinity Affinity) (*LoopFuture[int], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return l.execute(l.values(), func(_ int, v int) Workload {
		return IndexWorkload(v, action)
	}, budget, affinity)
}

// values yields (i, i) for every value of the range.
func (l *IntPreparedLoop) values() iter.Seq2[int, int] {
	start, bound, cond, step := l.start, l.bound, l.cond, l.step
	return func(yield func(int, int) bool) {
		for i := start; cond(i, bound); i = step(i) {
			if !yield(i, i) {
				return
			}
		}
	}
}
