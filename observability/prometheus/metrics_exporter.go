package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-tickworker/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// WorkloadBuckets are histogram buckets in seconds for single workloads.
	// Defaults span 50µs to ~100ms, around the 2.5ms default budget.
	WorkloadBuckets []float64

	// DrainBuckets are histogram buckets in seconds for whole drain invocations.
	DrainBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	workloadDurationSeconds *prom.HistogramVec
	drainDurationSeconds    *prom.HistogramVec
	drainWorkloadsTotal     *prom.CounterVec
	drainOverBudgetTotal    *prom.CounterVec
	queueDepth              *prom.GaugeVec
	taskPanicTotal          *prom.CounterVec
	taskRejectedTotal       *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "tickworker"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	workloadBuckets := opts.WorkloadBuckets
	if len(workloadBuckets) == 0 {
		workloadBuckets = prom.ExponentialBuckets(0.00005, 2, 12)
	}
	drainBuckets := opts.DrainBuckets
	if len(drainBuckets) == 0 {
		drainBuckets = prom.ExponentialBuckets(0.0001, 2, 12)
	}

	workloadVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "workload_duration_seconds",
		Help:      "Duration of a single workload in seconds.",
		Buckets:   workloadBuckets,
	}, []string{"queue"})
	drainVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "drain_duration_seconds",
		Help:      "Duration of one drain invocation in seconds.",
		Buckets:   drainBuckets,
	}, []string{"queue"})
	executedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "drain_workloads_total",
		Help:      "Total number of workloads executed by drains.",
	}, []string{"queue"})
	overBudgetVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "drain_over_budget_total",
		Help:      "Total number of drains that ended past their deadline.",
	}, []string{"queue"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Pending workloads after the latest drain.",
	}, []string{"queue"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of recovered task panics.",
	}, []string{"runner"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"runner", "reason"})

	var err error
	if workloadVec, err = registerCollector(reg, workloadVec); err != nil {
		return nil, err
	}
	if drainVec, err = registerCollector(reg, drainVec); err != nil {
		return nil, err
	}
	if executedVec, err = registerCollector(reg, executedVec); err != nil {
		return nil, err
	}
	if overBudgetVec, err = registerCollector(reg, overBudgetVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		workloadDurationSeconds: workloadVec,
		drainDurationSeconds:    drainVec,
		drainWorkloadsTotal:     executedVec,
		drainOverBudgetTotal:    overBudgetVec,
		queueDepth:              queueDepthVec,
		taskPanicTotal:          panicVec,
		taskRejectedTotal:       rejectedVec,
	}, nil
}

// RecordWorkloadDuration records one workload's duration.
func (m *MetricsExporter) RecordWorkloadDuration(queueName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.workloadDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown")).Observe(duration.Seconds())
}

// RecordDrain records one drain invocation.
func (m *MetricsExporter) RecordDrain(queueName string, executed int, elapsed time.Duration, overBudget bool) {
	if m == nil {
		return
	}
	queue := normalizeLabel(queueName, "unknown")
	m.drainDurationSeconds.WithLabelValues(queue).Observe(elapsed.Seconds())
	m.drainWorkloadsTotal.WithLabelValues(queue).Add(float64(executed))
	if overBudget {
		m.drainOverBudgetTotal.WithLabelValues(queue).Inc()
	}
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(queueName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
