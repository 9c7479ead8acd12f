package events

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/models"
)

type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:     p.bus,
		traceID: traceID,
	}
}

func (p *Publisher) publish(ctx context.Context, event *models.Event) {
	switch {
	case p.traceID != "":
		event.TraceID = p.traceID
	case ctx != nil:
		event.TraceID = logger.TraceIDFromContext(ctx)
	}
	p.bus.Publish(event)
}

// OnDecision publishes every reconcile result, plus one event for the
// outcome when it is more than a no-op.
func (p *Publisher) OnDecision(ctx context.Context, d *models.ScalingDecision, _ time.Duration) {
	p.DecisionMade(ctx, d)

	switch d.Outcome() {
	case models.OutcomeScaledUp, models.OutcomeScaledDown:
		p.ScalingApplied(ctx, d)
	case models.OutcomeCooldown:
		p.ScalingBlocked(ctx, d)
	case models.OutcomeWriteFailed:
		p.ScalingFailed(ctx, d)
	case models.OutcomeFailed:
		p.ReconcileFailed(ctx, d)
	}
}

func (p *Publisher) DecisionMade(ctx context.Context, d *models.ScalingDecision) {
	msg := "Scaling decision: " + string(d.Outcome())
	event := models.NewEvent(models.EventTypeDecisionMade, d.Target.Key(), msg).
		WithData(d)
	p.publish(ctx, event)
}

func (p *Publisher) ScalingApplied(ctx context.Context, d *models.ScalingDecision) {
	msg := fmt.Sprintf("Scaled %d -> %d replicas", d.CurrentReplicas, d.ActuatedReplicas)
	event := models.NewEvent(models.EventTypeScalingApplied, d.Target.Key(), msg).
		WithData(d)
	p.publish(ctx, event)
}

func (p *Publisher) ScalingBlocked(ctx context.Context, d *models.ScalingDecision) {
	msg := fmt.Sprintf("Scaling blocked by %s for %s", d.BlockReason, d.CooldownRemaining.Round(time.Second))
	event := models.NewEvent(models.EventTypeScalingBlocked, d.Target.Key(), msg).
		WithData(d)
	p.publish(ctx, event)
}

func (p *Publisher) ScalingFailed(ctx context.Context, d *models.ScalingDecision) {
	event := models.NewEvent(models.EventTypeScalingFailed, d.Target.Key(), "Replica write failed: "+d.Error).
		WithSeverity(models.SeverityCritical).
		WithData(d)
	p.publish(ctx, event)
}

func (p *Publisher) ReconcileFailed(ctx context.Context, d *models.ScalingDecision) {
	severity := models.SeverityWarning
	if d.FailureKind != models.FailureTransient {
		severity = models.SeverityCritical
	}
	msg := fmt.Sprintf("Reconcile failed (%s): %s", d.FailureKind, d.Error)
	event := models.NewEvent(models.EventTypeReconcileFailed, d.Target.Key(), msg).
		WithSeverity(severity).
		WithData(d)
	p.publish(ctx, event)
}

func (p *Publisher) SpecUpdated(ctx context.Context, scaler *models.Scaler) {
	event := models.NewEvent(models.EventTypeSpecUpdated, scaler.Target.Key(), "Scaling spec updated").
		WithData(scaler)
	p.publish(ctx, event)
}

func (p *Publisher) SpecRemoved(ctx context.Context, target models.ScalingTarget) {
	event := models.NewEvent(models.EventTypeSpecRemoved, target.Key(), "Scaling spec removed")
	p.publish(ctx, event)
}
