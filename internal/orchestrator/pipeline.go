package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/pkg/models"
)

type PipelineConfig struct {
	Target   models.ScalingTarget
	Interval time.Duration
	Timeout  time.Duration
	Engine   *reconcile.Engine
}

// Pipeline reconciles one target on an interval and whenever its spec changes.
type Pipeline struct {
	config  PipelineConfig
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}

	mu      sync.Mutex
	running bool
	scaler  models.Scaler
	plan    *reconcile.Plan
	last    *models.ScalingDecision
}

func NewPipeline(cfg PipelineConfig, scaler models.Scaler, plan *reconcile.Plan) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		trigger: make(chan struct{}, 1),
		scaler:  scaler,
		plan:    plan,
	}
}

func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)
	go p.run()

	logger.WithTarget(p.config.Target).Info("Pipeline started")
}

func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	logger.WithTarget(p.config.Target).Info("Pipeline stopped")
}

func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Update swaps in a new spec and schedules an immediate reconcile.
func (p *Pipeline) Update(scaler models.Scaler, plan *reconcile.Plan) {
	p.mu.Lock()
	p.scaler = scaler
	p.plan = plan
	p.mu.Unlock()

	p.Trigger()
}

// Trigger schedules a reconcile without waiting for it. Triggers that arrive
// while one is pending are coalesced.
func (p *Pipeline) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// ReconcileNow runs one reconcile on the caller's goroutine.
func (p *Pipeline) ReconcileNow(ctx context.Context) *models.ScalingDecision {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	return p.reconcile(ctx)
}

func (p *Pipeline) Scaler() models.Scaler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scaler
}

func (p *Pipeline) LastDecision() *models.ScalingDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runCycle()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runCycle()
		case <-p.trigger:
			p.runCycle()
		}
	}
}

func (p *Pipeline) runCycle() {
	ctx, cancel := context.WithTimeout(p.ctx, p.config.Timeout)
	defer cancel()

	p.reconcile(logger.WithTraceID(ctx, models.NewUUID()))
}

func (p *Pipeline) reconcile(ctx context.Context) *models.ScalingDecision {
	p.mu.Lock()
	plan := p.plan
	p.mu.Unlock()

	d := p.config.Engine.Run(ctx, p.config.Target, plan)

	p.mu.Lock()
	p.last = d
	p.mu.Unlock()
	return d
}
