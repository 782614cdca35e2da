package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-threadhop/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// WorkerSnapshotProvider provides current worker stats snapshots.
type WorkerSnapshotProvider interface {
	Stats() core.WorkerStats
}

// LoopSnapshotProvider provides current foreground loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.LoopStats
}

// RegistrySnapshotProvider provides per-owner stats of a registry.
type RegistrySnapshotProvider interface {
	Snapshot() []core.OwnerStats
}

// SnapshotPoller periodically exports worker, loop and registry snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	providersMu sync.RWMutex
	workers     map[string]WorkerSnapshotProvider
	loops       map[string]LoopSnapshotProvider
	registries  map[string]RegistrySnapshotProvider

	workerPending      *prom.GaugeVec
	workerRunning      *prom.GaugeVec
	workerClosed       *prom.GaugeVec
	workerIncarnations *prom.GaugeVec

	loopPending  *prom.GaugeVec
	loopRejected *prom.GaugeVec
	loopPanics   *prom.GaugeVec
	loopClosed   *prom.GaugeVec

	ownerInBackground *prom.GaugeVec
	ownerQueued       *prom.GaugeVec
	registryOwners    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		interval:   interval,
		workers:    make(map[string]WorkerSnapshotProvider),
		loops:      make(map[string]LoopSnapshotProvider),
		registries: make(map[string]RegistrySnapshotProvider),

		workerPending:      gauge("worker_pending", "Pending jobs per worker.", "worker"),
		workerRunning:      gauge("worker_running", "Worker goroutine alive (1=alive, 0=idle).", "worker"),
		workerClosed:       gauge("worker_closed", "Worker closed state (1=closed, 0=open).", "worker"),
		workerIncarnations: gauge("worker_incarnations", "Worker goroutines spawned so far.", "worker"),

		loopPending:  gauge("loop_pending", "Queued callbacks per foreground loop.", "loop"),
		loopRejected: gauge("loop_rejected_total", "Foreground loop rejected callback count snapshot.", "loop"),
		loopPanics:   gauge("loop_panics_total", "Foreground loop callback panic count snapshot.", "loop"),
		loopClosed:   gauge("loop_closed", "Foreground loop closed state (1=closed, 0=open).", "loop"),

		ownerInBackground: gauge("owner_in_background", "Tasks on the background side per owner.", "registry", "owner"),
		ownerQueued:       gauge("owner_queued_continuations", "Continuations waiting for the foreground per owner.", "registry", "owner"),
		registryOwners:    gauge("registry_owners", "Owners with live scheduler state.", "registry"),
	}

	for _, target := range []**prom.GaugeVec{
		&p.workerPending, &p.workerRunning, &p.workerClosed, &p.workerIncarnations,
		&p.loopPending, &p.loopRejected, &p.loopPanics, &p.loopClosed,
		&p.ownerInBackground, &p.ownerQueued, &p.registryOwners,
	} {
		registered, err := registerCollector(reg, *target)
		if err != nil {
			return nil, err
		}
		*target = registered
	}
	return p, nil
}

// AddWorker adds or replaces a worker snapshot provider by name.
func (p *SnapshotPoller) AddWorker(name string, provider WorkerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "worker")
	p.providersMu.Lock()
	p.workers[name] = provider
	p.providersMu.Unlock()
}

// AddLoop adds or replaces a foreground loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.providersMu.Lock()
	p.loops[name] = provider
	p.providersMu.Unlock()
}

// AddRegistry adds or replaces a registry snapshot provider by name.
// Owner gauges follow the registry: cleaned-up owners disappear on the next poll.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "registry")
	p.providersMu.Lock()
	p.registries[name] = provider
	p.providersMu.Unlock()
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

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func (p *SnapshotPoller) collectOnce() {
	p.providersMu.RLock()
	defer p.providersMu.RUnlock()

	for name, provider := range p.workers {
		stats := provider.Stats()
		p.workerPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.workerRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.workerClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
		p.workerIncarnations.WithLabelValues(name).Set(float64(stats.Incarnations))
	}

	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.loopRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.loopPanics.WithLabelValues(name).Set(float64(stats.Panics))
		p.loopClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}

	p.ownerInBackground.Reset()
	p.ownerQueued.Reset()
	for name, provider := range p.registries {
		owners := provider.Snapshot()
		p.registryOwners.WithLabelValues(name).Set(float64(len(owners)))
		for _, o := range owners {
			owner := normalizeLabel(o.Owner, "unknown")
			p.ownerInBackground.WithLabelValues(name, owner).Set(float64(o.InBackground))
			p.ownerQueued.WithLabelValues(name, owner).Set(float64(o.Queued))
		}
	}
}
