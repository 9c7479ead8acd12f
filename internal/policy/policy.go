// Package policy turns an aggregated metric pair and the current replica
// count into a desired replica count.
package policy

import (
	"math"
)

const (
	// ScaleUpThreshold and ScaleDownThreshold bound the dead-band around the
	// target value, as multiples of it.
	ScaleUpThreshold   = 1.2
	ScaleDownThreshold = 0.8

	maxReplicaCount = math.MaxInt32
)

// Input is everything a policy is allowed to look at.
type Input struct {
	CurrentValue    float64
	TargetValue     float64
	CurrentReplicas int
	MinReplicas     int
	MaxReplicas     int
}

// Policy is a pure function over Input. Implementations must not perform I/O.
type Policy interface {
	Name() string
	Decide(in Input) int
}

// proportionalReplicas applies the shared dead-band rule without clamping.
func proportionalReplicas(in Input) int {
	ratio := 1.0
	if in.TargetValue != 0 {
		ratio = in.CurrentValue / in.TargetValue
	}

	switch {
	case in.CurrentValue > in.TargetValue*ScaleUpThreshold:
		return truncate(float64(in.CurrentReplicas) * ratio)
	case in.CurrentValue < in.TargetValue*ScaleDownThreshold:
		return truncate(float64(in.CurrentReplicas) * ratio)
	default:
		return in.CurrentReplicas
	}
}

// truncate drops the fractional part toward zero and saturates instead of
// overflowing on extreme ratios.
func truncate(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= maxReplicaCount:
		return maxReplicaCount
	case v <= -maxReplicaCount:
		return -maxReplicaCount
	}
	return int(v)
}

func clamp(desired, minReplicas, maxReplicas int) int {
	return max(minReplicas, min(desired, maxReplicas))
}
