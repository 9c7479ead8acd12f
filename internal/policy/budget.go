package policy

import (
	"fmt"

	"github.com/OldStager01/generalscaler/pkg/models"
)

const (
	DefaultMaxCostPerHour = 50.0
	DefaultCostPerPod     = 0.5
)

// BudgetConstrained runs the proportional rule and then caps the result at
// the number of pods the hourly budget affords. The min/max bounds are
// applied after the cap and win over it.
type BudgetConstrained struct {
	MaxCostPerHour float64
	CostPerPod     float64
}

var _ Policy = (*BudgetConstrained)(nil)

func NewBudgetConstrained(maxCostPerHour, costPerPod float64) (*BudgetConstrained, error) {
	if maxCostPerHour <= 0 {
		return nil, fmt.Errorf("%w: maxCostPerHour must be > 0, got %v", models.ErrInvalidPolicyConfig, maxCostPerHour)
	}
	if costPerPod <= 0 {
		return nil, fmt.Errorf("%w: costPerPod must be > 0, got %v", models.ErrInvalidPolicyConfig, costPerPod)
	}
	return &BudgetConstrained{
		MaxCostPerHour: maxCostPerHour,
		CostPerPod:     costPerPod,
	}, nil
}

func (b *BudgetConstrained) Name() string {
	return string(KindCost)
}

// AffordableReplicas is the largest pod count within budget.
func (b *BudgetConstrained) AffordableReplicas() int {
	return truncate(b.MaxCostPerHour / b.CostPerPod)
}

func (b *BudgetConstrained) Decide(in Input) int {
	desired := proportionalReplicas(in)

	if float64(desired)*b.CostPerPod > b.MaxCostPerHour {
		desired = b.AffordableReplicas()
	}

	return clamp(desired, in.MinReplicas, in.MaxReplicas)
}
