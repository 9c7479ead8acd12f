package reconcile

import (
	"errors"
	"fmt"

	"github.com/OldStager01/generalscaler/internal/policy"
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/pkg/models"
)

// SourceBuilder resolves a MetricSourceConfig into a typed Source.
type SourceBuilder interface {
	Build(cfg models.MetricSourceConfig) (sources.Source, error)
}

// BoundSource pairs a Source with the value it is measured against.
type BoundSource struct {
	Source      sources.Source
	TargetValue float64
}

// Plan is a ScalingSpec with every tag resolved to a typed value.
type Plan struct {
	Spec          models.ScalingSpec
	MinReplicas   int
	MaxReplicas   int
	Policy        policy.Policy
	Sources       []BoundSource
	Safety        models.SafetyConfig
	FailurePolicy models.ReadFailurePolicy
}

// Compile validates spec and resolves its policy and sources. Errors wrap
// ErrInvalidSpec, ErrUnknownPolicy, ErrInvalidPolicyConfig, ErrUnknownSource
// or ErrInvalidSourceConfig.
func Compile(spec models.ScalingSpec, builder SourceBuilder) (*Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	p, err := policy.New(spec.Policy)
	if err != nil {
		return nil, err
	}

	bound := make([]BoundSource, 0, len(spec.Metrics))
	var errs []error
	for i, m := range spec.Metrics {
		src, err := builder.Build(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("metrics[%d]: %w", i, err))
			continue
		}
		bound = append(bound, BoundSource{Source: src, TargetValue: m.Target()})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	minReplicas, maxReplicas := spec.Bounds()
	return &Plan{
		Spec:          spec,
		MinReplicas:   minReplicas,
		MaxReplicas:   maxReplicas,
		Policy:        p,
		Sources:       bound,
		Safety:        spec.Safety,
		FailurePolicy: spec.FailurePolicy(),
	}, nil
}
