package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tickworker/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// QueueSnapshotProvider provides current queue stats snapshots.
// *core.Scheduler satisfies it.
type QueueSnapshotProvider interface {
	Stats() []core.QueueStats
}

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports Stats() snapshots of schedulers,
// runners and pools into Prometheus gauges.
//
// Queue gauges are aggregated by queue name so that every registered queue
// shares one series per state.
type SnapshotPoller struct {
	interval time.Duration

	mu        sync.RWMutex
	schedules map[string]QueueSnapshotProvider
	runners   map[string]RunnerSnapshotProvider
	pools     map[string]PoolSnapshotProvider

	queuePending  *prom.GaugeVec
	queueCount    *prom.GaugeVec
	queueExecuted *prom.GaugeVec

	runnerPending  *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerRejected *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "tickworker"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:  interval,
		schedules: make(map[string]QueueSnapshotProvider),
		runners:   make(map[string]RunnerSnapshotProvider),
		pools:     make(map[string]PoolSnapshotProvider),

		queuePending:  gauge("queue_pending", "Pending workloads per queue name.", "scheduler", "queue"),
		queueCount:    gauge("queues", "Live queues per queue name and state.", "scheduler", "queue", "state"),
		queueExecuted: gauge("queue_executed", "Workloads executed by live queues, per queue name.", "scheduler", "queue"),

		runnerPending:  gauge("runner_pending", "Number of pending tasks per runner.", "runner", "type"),
		runnerRunning:  gauge("runner_running", "Number of running tasks per runner.", "runner", "type"),
		runnerRejected: gauge("runner_rejected", "Runner rejected task count snapshot.", "runner", "type"),
		runnerClosed:   gauge("runner_closed", "Runner closed state (1=closed, 0=open).", "runner", "type"),

		poolQueued:  gauge("pool_queued", "Queued tasks per pool.", "pool"),
		poolActive:  gauge("pool_active", "Active tasks per pool.", "pool"),
		poolWorkers: gauge("pool_workers", "Worker count per pool.", "pool"),
		poolRunning: gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.queuePending, &p.queueCount, &p.queueExecuted,
		&p.runnerPending, &p.runnerRunning, &p.runnerRejected, &p.runnerClosed,
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}

	return p, nil
}

// AddScheduler adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.mu.Lock()
	p.schedules[name] = provider
	p.mu.Unlock()
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.mu.Lock()
	p.runners[name] = provider
	p.mu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.mu.Lock()
	p.pools[name] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

// CollectOnce takes one snapshot of every provider.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.collectQueues()

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.runnerRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
}

// collectQueues rebuilds the queue series so that finished queues drop out.
func (p *SnapshotPoller) collectQueues() {
	type key struct{ scheduler, queue, state string }
	pending := make(map[key]int)
	executed := make(map[key]uint64)
	count := make(map[key]int)

	for scheduler, provider := range p.schedules {
		for _, st := range provider.Stats() {
			name := normalizeLabel(st.Name, "unknown")
			byName := key{scheduler: scheduler, queue: name}
			pending[byName] += st.Pending
			executed[byName] += st.Executed
			count[key{scheduler: scheduler, queue: name, state: normalizeLabel(st.State, "unknown")}]++
		}
	}

	p.queuePending.Reset()
	p.queueExecuted.Reset()
	p.queueCount.Reset()
	for k, v := range pending {
		p.queuePending.WithLabelValues(k.scheduler, k.queue).Set(float64(v))
	}
	for k, v := range executed {
		p.queueExecuted.WithLabelValues(k.scheduler, k.queue).Set(float64(v))
	}
	for k, v := range count {
		p.queueCount.WithLabelValues(k.scheduler, k.queue, k.state).Set(float64(v))
	}
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
