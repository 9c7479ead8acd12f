// Package aggregator blends per-source readings into the single
// current/target pair consumed by scaling policies.
package aggregator

import "github.com/OldStager01/generalscaler/pkg/models"

// Neutral is returned for an empty reading set. Its non-zero target keeps
// the downstream ratio well defined.
var Neutral = Result{CurrentValue: 0, TargetValue: 1}

type Result struct {
	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value"`
	Samples      int     `json:"samples"`
}

// Aggregate returns the mean of all values and the mean of all targets,
// each computed independently.
func Aggregate(readings []models.MetricReading) Result {
	if len(readings) == 0 {
		return Neutral
	}

	var totalValue, totalTarget float64
	for _, r := range readings {
		totalValue += r.Value
		totalTarget += r.TargetValue
	}

	count := float64(len(readings))
	return Result{
		CurrentValue: totalValue / count,
		TargetValue:  totalTarget / count,
		Samples:      len(readings),
	}
}
