package policy

import (
	"fmt"
	"strings"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// Kind is the closed set of policy tags accepted in a PolicyConfig.
type Kind string

const (
	KindSLO  Kind = "slo"
	KindCost Kind = "cost"
)

var aliases = map[string]Kind{
	"":             KindSLO,
	"slo":          KindSLO,
	"proportional": KindSLO,
	"cost":         KindCost,
	"budget":       KindCost,
}

func ParseKind(tag string) (Kind, error) {
	kind, ok := aliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownPolicy, tag)
	}
	return kind, nil
}

// New resolves a PolicyConfig into a typed Policy.
func New(cfg models.PolicyConfig) (Policy, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindCost:
		params := models.Params(cfg.Config)
		maxCost, err := params.Float("maxCostPerHour", DefaultMaxCostPerHour)
		if err != nil {
			return nil, fmt.Errorf("%w: maxCostPerHour: %v", models.ErrInvalidPolicyConfig, err)
		}
		costPerPod, err := params.Float("costPerPod", DefaultCostPerPod)
		if err != nil {
			return nil, fmt.Errorf("%w: costPerPod: %v", models.ErrInvalidPolicyConfig, err)
		}
		return NewBudgetConstrained(maxCost, costPerPod)
	default:
		return NewProportional(), nil
	}
}
