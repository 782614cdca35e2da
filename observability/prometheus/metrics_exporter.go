package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-threadhop/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every collector when no namespace is given.
const DefaultNamespace = "threadhop"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	jobDurationSeconds  *prom.HistogramVec
	jobPanicTotal       *prom.CounterVec
	jobRejectedTotal    *prom.CounterVec
	queueDepth          *prom.GaugeVec
	taskSwitchTotal     *prom.CounterVec
	taskFinishedTotal   *prom.CounterVec
	taskDurationSeconds *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	jobDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Worker job and foreground callback duration in seconds.",
		Buckets:   buckets,
	}, []string{"source"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_panic_total",
		Help:      "Total number of worker job and foreground callback panics.",
	}, []string{"source"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_rejected_total",
		Help:      "Total number of jobs refused by a closed worker or loop.",
	}, []string{"source", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current queue depth.",
	}, []string{"source"})
	switchVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_switch_total",
		Help:      "Total number of task side switches.",
	}, []string{"owner", "to"})
	finishedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_finished_total",
		Help:      "Total number of finished tasks by terminal state.",
	}, []string{"owner", "state"})
	taskDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task lifetime from start to terminal state in seconds.",
		Buckets:   buckets,
	}, []string{"owner", "state"})

	var err error
	if jobDurationVec, err = registerCollector(reg, jobDurationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if switchVec, err = registerCollector(reg, switchVec); err != nil {
		return nil, err
	}
	if finishedVec, err = registerCollector(reg, finishedVec); err != nil {
		return nil, err
	}
	if taskDurationVec, err = registerCollector(reg, taskDurationVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		jobDurationSeconds:  jobDurationVec,
		jobPanicTotal:       panicVec,
		jobRejectedTotal:    rejectedVec,
		queueDepth:          queueDepthVec,
		taskSwitchTotal:     switchVec,
		taskFinishedTotal:   finishedVec,
		taskDurationSeconds: taskDurationVec,
	}, nil
}

// RecordJobDuration records job execution duration.
func (m *MetricsExporter) RecordJobDuration(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDurationSeconds.WithLabelValues(normalizeLabel(source, "unknown")).Observe(duration.Seconds())
}

// RecordJobPanic records job panic events.
func (m *MetricsExporter) RecordJobPanic(source string, panicInfo any) {
	if m == nil {
		return
	}
	m.jobPanicTotal.WithLabelValues(normalizeLabel(source, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(source string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(source, "unknown")).Set(float64(depth))
}

// RecordJobRejected records job rejection events.
func (m *MetricsExporter) RecordJobRejected(source string, reason string) {
	if m == nil {
		return
	}
	m.jobRejectedTotal.WithLabelValues(normalizeLabel(source, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskSwitch records a task hopping sides.
func (m *MetricsExporter) RecordTaskSwitch(owner string, to core.Side) {
	if m == nil {
		return
	}
	m.taskSwitchTotal.WithLabelValues(normalizeLabel(owner, "unknown"), to.String()).Inc()
}

// RecordTaskFinished records a task reaching a terminal state.
func (m *MetricsExporter) RecordTaskFinished(owner string, state core.TaskState, duration time.Duration) {
	if m == nil {
		return
	}
	ownerLabel := normalizeLabel(owner, "unknown")
	m.taskFinishedTotal.WithLabelValues(ownerLabel, state.String()).Inc()
	m.taskDurationSeconds.WithLabelValues(ownerLabel, state.String()).Observe(duration.Seconds())
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
