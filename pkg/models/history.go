package models

import "time"

// DecisionRecord is the persisted form of a ScalingDecision.
type DecisionRecord struct {
	ID               int64     `json:"id"`
	Namespace        string    `json:"namespace"`
	Name             string    `json:"name"`
	Timestamp        time.Time `json:"timestamp"`
	Outcome          Outcome   `json:"outcome"`
	Policy           string    `json:"policy,omitempty"`
	CurrentValue     float64   `json:"current_value"`
	TargetValue      float64   `json:"target_value"`
	CurrentReplicas  int       `json:"current_replicas"`
	DesiredReplicas  int       `json:"desired_replicas"`
	ActuatedReplicas int       `json:"actuated_replicas"`
	BlockReason      string    `json:"block_reason,omitempty"`
	FailureKind      string    `json:"failure_kind,omitempty"`
	Error            string    `json:"error,omitempty"`
}

func NewDecisionRecord(d *ScalingDecision) *DecisionRecord {
	return &DecisionRecord{
		Namespace:        d.Target.Namespace,
		Name:             d.Target.Name,
		Timestamp:        d.Timestamp,
		Outcome:          d.Outcome(),
		Policy:           d.Policy,
		CurrentValue:     d.CurrentValue,
		TargetValue:      d.TargetValue,
		CurrentReplicas:  d.CurrentReplicas,
		DesiredReplicas:  d.DesiredReplicas,
		ActuatedReplicas: d.ActuatedReplicas,
		BlockReason:      string(d.BlockReason),
		FailureKind:      string(d.FailureKind),
		Error:            d.Error,
	}
}
