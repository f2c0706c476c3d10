package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
)

// PoolConfig bounds a pool's growth: it starts with MinSize objects, grows
// by one on an empty Acquire below MaxSize, and grows by ScaleStep once in-use ratio
// exceeds ScaleThreshold.
type PoolConfig struct {
	MinSize        int
	MaxSize        int
	ScaleThreshold float64
	ScaleStep      int
}

// PoolFactory constructs one pooled object.
type PoolFactory func() (any, error)

// Pool is a factory-backed object pool used by pooled resources registered
// with Container.AddPool.
type Pool struct {
	name    string
	cfg     PoolConfig
	factory PoolFactory

	mu      sync.Mutex
	idle    []any
	inUse   int
	total   int

	sizeGauge        prometheus.Gauge
	utilizationGauge prometheus.Gauge
}

// NewPool constructs a pool, pre-populating it to MinSize.
func NewPool(name string, cfg PoolConfig, factory PoolFactory) (*Pool, error) {
	p := &Pool{
		name:    name,
		cfg:     cfg,
		factory: factory,
		sizeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentpipe",
			Subsystem: "resource_pool",
			Name:      "size",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		utilizationGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentpipe",
			Subsystem: "resource_pool",
			Name:      "utilization",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
	}
	for i := 0; i < cfg.MinSize; i++ {
		obj, err := factory()
		if err != nil {
			return nil, pipeerrors.NewResourceError(name, "pool_warmup", err)
		}
		p.idle = append(p.idle, obj)
		p.total++
	}
	p.publishMetrics()
	return p, nil
}

// Collectors returns the pool's Prometheus collectors for registration.
func (p *Pool) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.sizeGauge, p.utilizationGauge}
}

// Acquire checks out an idle object, growing the pool if empty and below
// MaxSize, and growing further by ScaleStep once utilization crosses
// ScaleThreshold.
func (p *Pool) Acquire(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		if p.total >= p.cfg.MaxSize {
			return nil, pipeerrors.NewResourceError(p.name, "acquire", fmt.Errorf("pool exhausted at max size %d", p.cfg.MaxSize))
		}
		if err := p.growLocked(1); err != nil {
			return nil, err
		}
	}

	obj := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	p.inUse++

	if p.utilizationLocked() > p.cfg.ScaleThreshold && p.total < p.cfg.MaxSize {
		_ = p.growLocked(p.cfg.ScaleStep)
	}

	p.publishMetrics()
	return obj, nil
}

// Release returns obj to the idle pool.
func (p *Pool) Release(obj any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, obj)
	if p.inUse > 0 {
		p.inUse--
	}
	p.publishMetrics()
}

func (p *Pool) growLocked(by int) error {
	room := p.cfg.MaxSize - p.total
	if room <= 0 {
		return nil
	}
	if by > room {
		by = room
	}
	for i := 0; i < by; i++ {
		obj, err := p.factory()
		if err != nil {
			return pipeerrors.NewResourceError(p.name, "grow", err)
		}
		p.idle = append(p.idle, obj)
		p.total++
	}
	return nil
}

func (p *Pool) utilizationLocked() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.inUse) / float64(p.total)
}

func (p *Pool) publishMetrics() {
	p.sizeGauge.Set(float64(p.total))
	p.utilizationGauge.Set(p.utilizationLocked())
}

// Metrics returns the pool's current size and utilization, for
// Container.HealthReport-adjacent diagnostics.
func (p *Pool) Metrics() (size int, utilization float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.utilizationLocked()
}
