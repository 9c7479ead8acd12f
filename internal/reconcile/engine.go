// Package reconcile runs one scaling evaluation for a target: read replicas,
// aggregate metrics, apply the policy, pass the governor, write.
package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/generalscaler/internal/aggregator"
	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/policy"
	"github.com/OldStager01/generalscaler/internal/safety"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/models"
)

// Hook observes every finished decision.
type Hook interface {
	OnDecision(ctx context.Context, d *models.ScalingDecision, elapsed time.Duration)
}

type HookFunc func(ctx context.Context, d *models.ScalingDecision, elapsed time.Duration)

func (f HookFunc) OnDecision(ctx context.Context, d *models.ScalingDecision, elapsed time.Duration) {
	f(ctx, d, elapsed)
}

type Engine struct {
	workload workload.Workload
	governor *safety.Governor
	builder  SourceBuilder
	hooks    []Hook
	now      func() time.Time
	dryRun   bool
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithHooks(hooks ...Hook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks...) }
}

// WithDryRun computes decisions without writing replicas or starting cooldowns.
func WithDryRun() Option {
	return func(e *Engine) { e.dryRun = true }
}

func NewEngine(w workload.Workload, g *safety.Governor, builder SourceBuilder, opts ...Option) *Engine {
	e := &Engine{
		workload: w,
		governor: g,
		builder:  builder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Governor() *safety.Governor {
	return e.governor
}

// Compile resolves spec against the engine's source builder.
func (e *Engine) Compile(spec models.ScalingSpec) (*Plan, error) {
	return Compile(spec, e.builder)
}

// Reconcile compiles spec and runs it. Configuration errors come back on the
// decision, never as a Go error.
func (e *Engine) Reconcile(ctx context.Context, target models.ScalingTarget, spec models.ScalingSpec) *models.ScalingDecision {
	plan, err := e.Compile(spec)
	if err != nil {
		started := e.now()
		d := models.NewDecision(target, started).Fail(err)
		return e.finish(ctx, d, started)
	}
	return e.Run(ctx, target, plan)
}

// Run evaluates a compiled plan for target. Runs for the same target are
// serialized; different targets proceed in parallel.
func (e *Engine) Run(ctx context.Context, target models.ScalingTarget, plan *Plan) *models.ScalingDecision {
	started := e.now()
	d := models.NewDecision(target, started)
	d.Policy = plan.Policy.Name()

	if err := target.Validate(); err != nil {
		return e.finish(ctx, d.Fail(err), started)
	}

	actuation := e.governor.Begin(target)
	defer actuation.Release()

	current, err := e.workload.CurrentReplicas(ctx, target)
	if err != nil {
		return e.finish(ctx, d.Fail(err), started)
	}
	d.CurrentReplicas = current
	d.ActuatedReplicas = current

	readings, skipped := e.collect(ctx, target, plan)
	agg := aggregator.Aggregate(readings)
	d.CurrentValue = agg.CurrentValue
	d.TargetValue = agg.TargetValue
	d.SkippedSources = skipped

	desired := plan.Policy.Decide(policy.Input{
		CurrentValue:    agg.CurrentValue,
		TargetValue:     agg.TargetValue,
		CurrentReplicas: current,
		MinReplicas:     plan.MinReplicas,
		MaxReplicas:     plan.MaxReplicas,
	})

	verdict := actuation.Authorize(desired, current, plan.Safety, started)
	d.DesiredReplicas = verdict.DesiredReplicas
	d.ActuatedReplicas = verdict.ActuatedReplicas
	d.Blocked = verdict.Blocked
	d.BlockReason = verdict.BlockReason
	d.CooldownRemaining = verdict.CooldownRemaining
	d.RateLimited = verdict.RateLimited

	if !d.NeedsWrite() {
		return e.finish(ctx, d, started)
	}
	if e.dryRun {
		d.DryRun = true
		return e.finish(ctx, d, started)
	}

	if err := e.workload.SetReplicas(ctx, target, d.ActuatedReplicas); err != nil {
		return e.finish(ctx, d.Fail(err), started)
	}
	actuation.Commit(started, d.ActuatedReplicas)
	d.Applied = true

	return e.finish(ctx, d, started)
}

// collect reads every source. A failed source contributes a zero reading or
// is left out, depending on the plan's failure policy.
func (e *Engine) collect(ctx context.Context, target models.ScalingTarget, plan *Plan) ([]models.MetricReading, int) {
	readings := make([]models.MetricReading, 0, len(plan.Sources))
	skipped := 0

	for _, bound := range plan.Sources {
		value, err := bound.Source.Read(ctx)
		if err != nil {
			logger.WithTarget(target).WithField("source", bound.Source.ID()).
				Warnf("Metric read failed (%s): %v", plan.FailurePolicy, err)

			if plan.FailurePolicy == models.ReadFailureSkip {
				skipped++
				continue
			}
			value = 0
		}
		readings = append(readings, models.MetricReading{Value: value, TargetValue: bound.TargetValue})
	}
	return readings, skipped
}

func (e *Engine) finish(ctx context.Context, d *models.ScalingDecision, started time.Time) *models.ScalingDecision {
	elapsed := e.now().Sub(started)
	logDecision(d)
	for _, h := range e.hooks {
		h.OnDecision(ctx, d, elapsed)
	}
	return d
}

func logDecision(d *models.ScalingDecision) {
	entry := logger.WithDecision(d)

	switch d.Outcome() {
	case models.OutcomeScaledUp, models.OutcomeScaledDown:
		entry.Infof("Scaled %d -> %d replicas", d.CurrentReplicas, d.ActuatedReplicas)
	case models.OutcomeDryRun:
		entry.Infof("Dry run: would scale %d -> %d replicas", d.CurrentReplicas, d.ActuatedReplicas)
	case models.OutcomeCooldown:
		entry.WithField("cooldown_remaining", d.CooldownRemaining.String()).Debug("Scaling blocked by cooldown")
	case models.OutcomeNoChange:
		entry.Debug("No scaling needed")
	default:
		logFailure(entry, d)
	}
}

func logFailure(entry *logrus.Entry, d *models.ScalingDecision) {
	switch d.FailureKind {
	case models.FailureConfiguration, models.FailureInvariant:
		entry.Errorf("Reconcile failed: %s", d.Error)
	default:
		entry.Warnf("Reconcile failed: %s", d.Error)
	}
}
