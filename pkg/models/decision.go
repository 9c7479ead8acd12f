package models

import (
	"errors"
	"time"
)

type BlockReason string

const (
	BlockReasonNone     BlockReason = ""
	BlockReasonCooldown BlockReason = "cooldown"
)

type Outcome string

const (
	OutcomeScaledUp    Outcome = "scaled_up"
	OutcomeScaledDown  Outcome = "scaled_down"
	OutcomeNoChange    Outcome = "no_change"
	OutcomeCooldown    Outcome = "cooldown"
	OutcomeWriteFailed Outcome = "write_failed"
	OutcomeFailed      Outcome = "failed"
	OutcomeDryRun      Outcome = "dry_run"
)

// ScalingDecision is the result of one reconcile. Blocked decisions are
// normal outcomes; Err is set only for configuration, invariant and
// transient failures.
type ScalingDecision struct {
	Target            ScalingTarget `json:"target"`
	Timestamp         time.Time     `json:"timestamp"`
	Policy            string        `json:"policy,omitempty"`
	CurrentValue      float64       `json:"current_value"`
	TargetValue       float64       `json:"target_value"`
	SkippedSources    int           `json:"skipped_sources,omitempty"`
	CurrentReplicas   int           `json:"current_replicas"`
	DesiredReplicas   int           `json:"desired_replicas"`
	ActuatedReplicas  int           `json:"actuated_replicas"`
	Blocked           bool          `json:"blocked"`
	BlockReason       BlockReason   `json:"block_reason,omitempty"`
	CooldownRemaining time.Duration `json:"cooldown_remaining,omitempty"`
	RateLimited       bool          `json:"rate_limited"`
	Applied           bool          `json:"applied"`
	DryRun            bool          `json:"dry_run,omitempty"`
	FailureKind       FailureKind   `json:"failure_kind,omitempty"`
	Error             string        `json:"error,omitempty"`
	Err               error         `json:"-"`
}

func NewDecision(target ScalingTarget, now time.Time) *ScalingDecision {
	return &ScalingDecision{
		Target:    target,
		Timestamp: now,
	}
}

// Fail records err on the decision and classifies it.
func (d *ScalingDecision) Fail(err error) *ScalingDecision {
	d.Err = err
	d.Error = err.Error()
	d.FailureKind = ClassifyError(err)
	return d
}

func (d *ScalingDecision) Failed() bool {
	return d.Err != nil
}

func (d *ScalingDecision) ReplicaDelta() int {
	return d.ActuatedReplicas - d.CurrentReplicas
}

// NeedsWrite reports whether the decision authorizes a replica change.
func (d *ScalingDecision) NeedsWrite() bool {
	return !d.Failed() && !d.Blocked && d.ActuatedReplicas != d.CurrentReplicas
}

func (d *ScalingDecision) Outcome() Outcome {
	switch {
	case d.Failed() && errors.Is(d.Err, ErrReplicaWrite):
		return OutcomeWriteFailed
	case d.Failed():
		return OutcomeFailed
	case d.Blocked:
		return OutcomeCooldown
	case d.ActuatedReplicas == d.CurrentReplicas:
		return OutcomeNoChange
	case d.DryRun:
		return OutcomeDryRun
	case d.ActuatedReplicas > d.CurrentReplicas:
		return OutcomeScaledUp
	default:
		return OutcomeScaledDown
	}
}

// ActuationRecord is the time of the last successful replica change for a target.
type ActuationRecord struct {
	Target    ScalingTarget `json:"target"`
	Timestamp time.Time     `json:"timestamp"`
	Replicas  int           `json:"replicas"`
}
