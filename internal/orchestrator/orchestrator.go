// Package orchestrator owns the set of managed targets and the pipeline that
// reconciles each of them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/generalscaler/internal/events"
	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/pkg/database/queries"
	"github.com/OldStager01/generalscaler/pkg/models"
)

var ErrScalerNotFound = queries.ErrScalerNotFound

// ScalerStore persists scalers created through the API.
type ScalerStore interface {
	List(ctx context.Context) ([]*models.Scaler, error)
	Upsert(ctx context.Context, scaler *models.Scaler) error
	Delete(ctx context.Context, target models.ScalingTarget) error
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Status is the externally visible state of one managed target.
type Status struct {
	Scaler            models.Scaler           `json:"scaler"`
	Running           bool                    `json:"running"`
	LastDecision      *models.ScalingDecision `json:"last_decision,omitempty"`
	LastActuation     *models.ActuationRecord `json:"last_actuation,omitempty"`
	CooldownRemaining time.Duration           `json:"cooldown_remaining"`
}

type Orchestrator struct {
	config    Config
	engine    *reconcile.Engine
	store     ScalerStore
	publisher *events.Publisher
	onRemove  func(target models.ScalingTarget)
	onApply   func(scaler models.Scaler)
	now       func() time.Time

	mu        sync.RWMutex
	pipelines map[models.ScalingTarget]*Pipeline
}

type Option func(*Orchestrator)

func WithStore(store ScalerStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

func WithPublisher(p *events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// OnRemove registers cleanup to run after a target stops being managed.
func OnRemove(fn func(target models.ScalingTarget)) Option {
	return func(o *Orchestrator) { o.onRemove = fn }
}

// OnApply registers a callback that runs before a scaler's pipeline starts or
// is updated, for scalers from Start and Apply alike.
func OnApply(fn func(scaler models.Scaler)) Option {
	return func(o *Orchestrator) { o.onApply = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg Config, engine *reconcile.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:    cfg,
		engine:    engine,
		now:       time.Now,
		pipelines: make(map[models.ScalingTarget]*Pipeline),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start loads persisted scalers, then the configured ones, and starts a
// pipeline for each. Configured scalers replace stored ones for the same
// target. A scaler that fails to compile is logged and skipped.
func (o *Orchestrator) Start(ctx context.Context, configured []models.Scaler) error {
	logger.Infof("Orchestrator starting")

	var scalers []models.Scaler
	if o.store != nil {
		stored, err := o.store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to load scalers: %w", err)
		}
		for _, s := range stored {
			scalers = append(scalers, *s)
		}
	}
	scalers = append(scalers, configured...)

	var errs []error
	for _, s := range scalers {
		if err := o.start(ctx, s); err != nil {
			logger.WithTarget(s.Target).Errorf("Failed to start scaler: %v", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Target, err))
		}
	}

	logger.Infof("Orchestrator started with %d scalers", len(o.List()))
	return errors.Join(errs...)
}

func (o *Orchestrator) Stop() {
	logger.Infof("Orchestrator stopping")

	o.mu.Lock()
	pipelines := o.pipelines
	o.pipelines = make(map[models.ScalingTarget]*Pipeline)
	o.mu.Unlock()

	for _, p := range pipelines {
		p.Stop()
	}

	logger.Infof("Orchestrator stopped")
}

// Apply compiles and persists a scaler, then starts or updates its pipeline.
// Invalid specs are rejected before anything is stored.
func (o *Orchestrator) Apply(ctx context.Context, scaler models.Scaler) (*models.Scaler, error) {
	if err := scaler.Target.Validate(); err != nil {
		return nil, err
	}
	plan, err := o.engine.Compile(scaler.Spec)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if existing, ok := o.pipeline(scaler.Target); ok {
		scaler.CreatedAt = existing.Scaler().CreatedAt
	} else {
		scaler.CreatedAt = now
	}
	scaler.UpdatedAt = now

	if o.store != nil {
		if err := o.store.Upsert(ctx, &scaler); err != nil {
			return nil, fmt.Errorf("failed to persist scaler: %w", err)
		}
	}

	o.run(scaler, plan)
	if o.publisher != nil {
		o.publisher.SpecUpdated(ctx, &scaler)
	}
	return &scaler, nil
}

func (o *Orchestrator) start(_ context.Context, scaler models.Scaler) error {
	if err := scaler.Target.Validate(); err != nil {
		return err
	}
	plan, err := o.engine.Compile(scaler.Spec)
	if err != nil {
		return err
	}
	o.run(scaler, plan)
	return nil
}

func (o *Orchestrator) run(scaler models.Scaler, plan *reconcile.Plan) {
	if o.onApply != nil {
		o.onApply(scaler)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if p, ok := o.pipelines[scaler.Target]; ok {
		p.Update(scaler, plan)
		logger.WithTarget(scaler.Target).Info("Scaler spec updated")
		return
	}

	p := NewPipeline(PipelineConfig{
		Target:   scaler.Target,
		Interval: o.config.Interval,
		Timeout:  o.config.Timeout,
		Engine:   o.engine,
	}, scaler, plan)
	p.Start()
	o.pipelines[scaler.Target] = p
}

// Remove stops managing target. The workload keeps its current replicas and
// the governor keeps its last actuation, so re-adding it honours the cooldown.
func (o *Orchestrator) Remove(ctx context.Context, target models.ScalingTarget) error {
	o.mu.Lock()
	p, ok := o.pipelines[target]
	delete(o.pipelines, target)
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrScalerNotFound, target)
	}
	p.Stop()

	if o.store != nil {
		if err := o.store.Delete(ctx, target); err != nil && !errors.Is(err, ErrScalerNotFound) {
			return fmt.Errorf("failed to delete scaler: %w", err)
		}
	}
	if o.onRemove != nil {
		o.onRemove(target)
	}
	if o.publisher != nil {
		o.publisher.SpecRemoved(ctx, target)
	}

	logger.WithTarget(target).Info("Scaler removed")
	return nil
}

// Reconcile runs one reconcile for target immediately and returns its decision.
func (o *Orchestrator) Reconcile(ctx context.Context, target models.ScalingTarget) (*models.ScalingDecision, error) {
	p, ok := o.pipeline(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScalerNotFound, target)
	}
	return p.ReconcileNow(ctx), nil
}

// ResetCooldown forgets the target's last actuation so the next reconcile
// may scale right away.
func (o *Orchestrator) ResetCooldown(target models.ScalingTarget) error {
	if _, ok := o.pipeline(target); !ok {
		return fmt.Errorf("%w: %s", ErrScalerNotFound, target)
	}
	o.engine.Governor().Reset(target)
	logger.WithTarget(target).Warn("Cooldown reset by operator")
	return nil
}

func (o *Orchestrator) Get(target models.ScalingTarget) (Status, error) {
	p, ok := o.pipeline(target)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrScalerNotFound, target)
	}
	return o.status(p), nil
}

// List returns every managed target ordered by key.
func (o *Orchestrator) List() []Status {
	o.mu.RLock()
	pipelines := make([]*Pipeline, 0, len(o.pipelines))
	for _, p := range o.pipelines {
		pipelines = append(pipelines, p)
	}
	o.mu.RUnlock()

	out := make([]Status, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, o.status(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scaler.Target.Key() < out[j].Scaler.Target.Key()
	})
	return out
}

func (o *Orchestrator) pipeline(target models.ScalingTarget) (*Pipeline, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.pipelines[target]
	return p, ok
}

func (o *Orchestrator) status(p *Pipeline) Status {
	scaler := p.Scaler()
	governor := o.engine.Governor()

	st := Status{
		Scaler:            scaler,
		Running:           p.IsRunning(),
		LastDecision:      p.LastDecision(),
		CooldownRemaining: governor.CooldownRemaining(scaler.Target, scaler.Spec.Safety, o.now()),
	}
	if rec, ok := governor.LastActuation(scaler.Target); ok {
		st.LastActuation = &rec
	}
	return st
}
