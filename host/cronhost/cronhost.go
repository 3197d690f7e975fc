// Package cronhost provides a core.Host driven by robfig/cron.
//
// Cron schedules have one-second resolution, so intervals below a second
// run once per second. Use core.RunnerHost for the default 50ms tick.
package cronhost

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-tickworker/core"
	"github.com/robfig/cron/v3"
)

// Config configures a Host.
type Config struct {
	// Name labels panics and metrics. Defaults to "cron".
	Name string

	// Main runs AffinityMain work. Nil means main work runs on the cron
	// goroutine like worker work.
	Main core.TaskRunner

	Logger       core.Logger
	PanicHandler core.PanicHandler
	Metrics      core.Metrics
}

// Host is a core.Host whose registrations are cron entries. Each entry is
// wrapped with cron.SkipIfStillRunning so one registration never overlaps
// itself.
type Host struct {
	name    string
	cron    *cron.Cron
	main    core.TaskRunner
	logger  core.Logger
	panics  core.PanicHandler
	metrics core.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[cron.EntryID]*entry
}

var _ core.Host = (*Host)(nil)

// New creates a stopped Host. Call Start to begin firing entries.
func New(cfg Config) *Host {
	if cfg.Name == "" {
		cfg.Name = "cron"
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewNoOpLogger()
	}
	if cfg.PanicHandler == nil {
		cfg.PanicHandler = &core.DefaultPanicHandler{Logger: cfg.Logger}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NilMetrics{}
	}

	cl := cronLogger{l: cfg.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		name: cfg.Name,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		main:    cfg.Main,
		logger:  cfg.Logger,
		panics:  cfg.PanicHandler,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[cron.EntryID]*entry),
	}
}

// Start begins firing entries in the background.
func (h *Host) Start() {
	h.cron.Start()
}

// Stop halts the scheduler and waits for running entries to finish or ctx
// to be done.
func (h *Host) Stop(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of live registrations.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Every implements core.Host. Intervals are rounded down to whole seconds
// with a minimum of one second.
func (h *Host) Every(interval time.Duration, affinity core.Affinity, task core.Task) core.RepeatingTaskHandle {
	e := &entry{host: h}
	id := h.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if e.IsStopped() {
			return
		}
		h.run(affinity, task)
	}))
	e.id = id

	h.mu.Lock()
	h.entries[id] = e
	h.mu.Unlock()

	h.logger.Debug("cron registration added",
		core.F("entry", int(id)),
		core.F("interval", interval),
		core.F("affinity", affinity.String()),
	)
	return e
}

// Post implements core.Host.
func (h *Host) Post(affinity core.Affinity, task core.Task) {
	if affinity == core.AffinityMain && h.main != nil {
		h.main.PostTask(task)
		return
	}
	go h.invoke(task)
}

// run executes one firing. Main work is handed to the main runner and
// awaited so SkipIfStillRunning sees its real duration.
func (h *Host) run(affinity core.Affinity, task core.Task) {
	if affinity != core.AffinityMain || h.main == nil {
		h.invoke(task)
		return
	}
	if c, ok := h.main.(interface{ IsClosed() bool }); ok && c.IsClosed() {
		return
	}
	done := make(chan struct{})
	h.main.PostTask(func(ctx context.Context) {
		defer close(done)
		task(ctx)
	})
	select {
	case <-done:
	case <-h.ctx.Done():
	}
}

func (h *Host) invoke(task core.Task) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.RecordTaskPanic(h.name, r)
			h.panics.HandlePanic(h.ctx, h.name, -1, r, debug.Stack())
		}
	}()
	task(h.ctx)
}

func (h *Host) remove(e *entry) {
	h.cron.Remove(e.id)
	h.mu.Lock()
	delete(h.entries, e.id)
	h.mu.Unlock()
}

type entry struct {
	host    *Host
	id      cron.EntryID
	stopped atomic.Bool
}

func (e *entry) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		e.host.remove(e)
	}
}

func (e *entry) IsStopped() bool { return e.stopped.Load() }

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	l core.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(fields(keysAndValues), core.F("error", err))...)
}

func fields(kv []any) []core.Field {
	out := make([]core.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, core.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
