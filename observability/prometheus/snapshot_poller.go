package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/choreo/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// QueueSnapshotProvider provides current queue stats snapshots.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

// SnapshotPoller periodically exports scheduler/queue Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	schedulerPhase    *prom.GaugeVec
	schedulerLocked   *prom.GaugeVec
	schedulerRejected *prom.GaugeVec

	queuePending    *prom.GaugeVec
	queueActive     *prom.GaugeVec
	queuePaused     *prom.GaugeVec
	queueMaxWorkers *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerPhase := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "scheduler_high_priority_active",
		Help:      "Scheduler phase (1=high priority active, 0=idle).",
	}, []string{"scheduler"})
	schedulerLocked := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "scheduler_locked",
		Help:      "Scheduler lock state (1=locked, 0=unlocked).",
	}, []string{"scheduler"})
	schedulerRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "scheduler_rejected",
		Help:      "Scheduler rejected process count snapshot.",
	}, []string{"scheduler"})

	queuePending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "queue_pending",
		Help:      "Pending tasks per queue.",
	}, []string{"queue", "tier"})
	queueActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "queue_active",
		Help:      "Occupied slots per queue.",
	}, []string{"queue", "tier"})
	queuePaused := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "queue_paused",
		Help:      "Queue pause state (1=paused, 0=running).",
	}, []string{"queue", "tier"})
	queueMaxWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "choreo",
		Name:      "queue_max_workers",
		Help:      "Slot ceiling per queue.",
	}, []string{"queue", "tier"})

	var err error
	if schedulerPhase, err = registerCollector(reg, schedulerPhase); err != nil {
		return nil, err
	}
	if schedulerLocked, err = registerCollector(reg, schedulerLocked); err != nil {
		return nil, err
	}
	if schedulerRejected, err = registerCollector(reg, schedulerRejected); err != nil {
		return nil, err
	}
	if queuePending, err = registerCollector(reg, queuePending); err != nil {
		return nil, err
	}
	if queueActive, err = registerCollector(reg, queueActive); err != nil {
		return nil, err
	}
	if queuePaused, err = registerCollector(reg, queuePaused); err != nil {
		return nil, err
	}
	if queueMaxWorkers, err = registerCollector(reg, queueMaxWorkers); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:          interval,
		schedulers:        make(map[string]SchedulerSnapshotProvider),
		queues:            make(map[string]QueueSnapshotProvider),
		schedulerPhase:    schedulerPhase,
		schedulerLocked:   schedulerLocked,
		schedulerRejected: schedulerRejected,
		queuePending:      queuePending,
		queueActive:       queueActive,
		queuePaused:       queuePaused,
		queueMaxWorkers:   queueMaxWorkers,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
// Both tiers of the scheduler are exported as queues.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// AddQueue adds or replaces a standalone queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
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

	go p.loop(pollCtx)
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

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.schedulerPhase.WithLabelValues(name).Set(boolGauge(stats.Phase == core.PhaseHighPriorityActive))
		p.schedulerLocked.WithLabelValues(name).Set(boolGauge(stats.Locked))
		p.schedulerRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.setQueue(normalizeLabel(stats.High.Name, name+"/high"), stats.High)
		p.setQueue(normalizeLabel(stats.Low.Name, name+"/low"), stats.Low)
	}
	p.schedulersMu.RUnlock()

	p.queuesMu.RLock()
	for name, provider := range p.queues {
		p.setQueue(name, provider.Stats())
	}
	p.queuesMu.RUnlock()
}

func (p *SnapshotPoller) setQueue(name string, stats core.QueueStats) {
	tier := stats.Tier.String()
	p.queuePending.WithLabelValues(name, tier).Set(float64(stats.Pending))
	p.queueActive.WithLabelValues(name, tier).Set(float64(stats.Active))
	p.queuePaused.WithLabelValues(name, tier).Set(boolGauge(stats.Paused))
	p.queueMaxWorkers.WithLabelValues(name, tier).Set(float64(stats.MaxWorkers))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
