package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/choreo/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// defaultDurationBuckets spans short flashes up to multi second reveals.
var defaultDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds  *prom.HistogramVec
	taskFailureTotal     *prom.CounterVec
	processRejectedTotal *prom.CounterVec
	queueDepth           *prom.GaugeVec
	activeWorkers        *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "choreo"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = defaultDurationBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time a task held its queue slot, in seconds.",
		Buckets:   buckets,
	}, []string{"queue", "tier"})
	failureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failure_total",
		Help:      "Total number of failed tasks by reason.",
	}, []string{"queue", "tier", "reason"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "process_rejected_total",
		Help:      "Total number of rejected scheduler process attempts.",
	}, []string{"scheduler", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of pending tasks.",
	}, []string{"queue"})
	activeVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_active_workers",
		Help:      "Current number of occupied worker slots.",
	}, []string{"queue"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if failureVec, err = registerCollector(reg, failureVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if activeVec, err = registerCollector(reg, activeVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  durationVec,
		taskFailureTotal:     failureVec,
		processRejectedTotal: rejectedVec,
		queueDepth:           queueDepthVec,
		activeWorkers:        activeVec,
	}, nil
}

// RecordTaskDuration records how long a task held its slot.
func (m *MetricsExporter) RecordTaskDuration(queueName string, tier core.Tier, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown"), tier.String()).Observe(duration.Seconds())
}

// RecordTaskFailure records failed tasks.
func (m *MetricsExporter) RecordTaskFailure(queueName string, tier core.Tier, reason string) {
	if m == nil {
		return
	}
	m.taskFailureTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), tier.String(), normalizeLabel(reason, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(queueName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordActiveWorkers records occupied slots.
func (m *MetricsExporter) RecordActiveWorkers(queueName string, active int) {
	if m == nil {
		return
	}
	m.activeWorkers.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(active))
}

// RecordProcessRejected records rejected process attempts.
func (m *MetricsExporter) RecordProcessRejected(schedulerID string, reason string) {
	if m == nil {
		return
	}
	m.processRejectedTotal.WithLabelValues(normalizeLabel(schedulerID, "unknown"), normalizeLabel(reason, "unknown")).Inc()
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
