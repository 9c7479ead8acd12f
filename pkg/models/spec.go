package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultMinReplicas      = 1
	DefaultMaxReplicas      = 10
	DefaultTargetValue      = 100.0
	DefaultCooldownSeconds  = 300
	DefaultMaxScaleUpRate   = 2
	DefaultMaxScaleDownRate = 1
)

// ReadFailurePolicy decides what an unavailable metric source contributes
// to the aggregate.
type ReadFailurePolicy string

const (
	// ReadFailureZero substitutes a 0 reading for the failed source.
	ReadFailureZero ReadFailurePolicy = "zero"
	// ReadFailureSkip leaves the failed source out of the mean.
	ReadFailureSkip ReadFailurePolicy = "skip"
)

// MetricReading is a single observed value and the value it is measured against.
type MetricReading struct {
	Value       float64 `json:"value"`
	TargetValue float64 `json:"target_value"`
}

// MetricSourceConfig selects a source adapter by type. Config is opaque to
// the core and interpreted by the adapter.
type MetricSourceConfig struct {
	Type        string         `json:"type" mapstructure:"type"`
	Config      map[string]any `json:"config,omitempty" mapstructure:"config"`
	TargetValue *float64       `json:"target_value,omitempty" mapstructure:"target_value"`
}

func (m MetricSourceConfig) Target() float64 {
	if m.TargetValue == nil {
		return DefaultTargetValue
	}
	return *m.TargetValue
}

type PolicyConfig struct {
	Type   string         `json:"type" mapstructure:"type"`
	Config map[string]any `json:"config,omitempty" mapstructure:"config"`
}

// SafetyConfig holds the governor constraints. Nil fields take the defaults.
type SafetyConfig struct {
	CooldownSeconds  *int `json:"cooldown_seconds,omitempty" mapstructure:"cooldown_seconds"`
	MaxScaleUpRate   *int `json:"max_scale_up_rate,omitempty" mapstructure:"max_scale_up_rate"`
	MaxScaleDownRate *int `json:"max_scale_down_rate,omitempty" mapstructure:"max_scale_down_rate"`
}

// maxCooldownSeconds is the longest cooldown a time.Duration can hold.
const maxCooldownSeconds = int64(math.MaxInt64 / time.Second)

// Cooldown saturates at the largest representable duration.
func (s SafetyConfig) Cooldown() time.Duration {
	seconds := int64(intOr(s.CooldownSeconds, DefaultCooldownSeconds))
	if seconds > maxCooldownSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}

func (s SafetyConfig) ScaleUpLimit() int {
	return intOr(s.MaxScaleUpRate, DefaultMaxScaleUpRate)
}

func (s SafetyConfig) ScaleDownLimit() int {
	return intOr(s.MaxScaleDownRate, DefaultMaxScaleDownRate)
}

func (s SafetyConfig) Validate() error {
	var errs []error
	if intOr(s.CooldownSeconds, 0) < 0 {
		errs = append(errs, errors.New("safety.cooldown_seconds must be >= 0"))
	}
	if intOr(s.MaxScaleUpRate, 0) < 0 {
		errs = append(errs, errors.New("safety.max_scale_up_rate must be >= 0"))
	}
	if intOr(s.MaxScaleDownRate, 0) < 0 {
		errs = append(errs, errors.New("safety.max_scale_down_rate must be >= 0"))
	}
	return errors.Join(errs...)
}

// ScalingSpec is supplied on every reconcile and is never owned by the core.
type ScalingSpec struct {
	MinReplicas       *int                 `json:"min_replicas,omitempty" mapstructure:"min_replicas"`
	MaxReplicas       *int                 `json:"max_replicas,omitempty" mapstructure:"max_replicas"`
	Metrics           []MetricSourceConfig `json:"metrics,omitempty" mapstructure:"metrics"`
	Policy            PolicyConfig         `json:"policy" mapstructure:"policy"`
	Safety            SafetyConfig         `json:"safety" mapstructure:"safety"`
	ReadFailurePolicy ReadFailurePolicy    `json:"read_failure_policy,omitempty" mapstructure:"read_failure_policy"`
}

func (s ScalingSpec) Bounds() (minReplicas, maxReplicas int) {
	return intOr(s.MinReplicas, DefaultMinReplicas), intOr(s.MaxReplicas, DefaultMaxReplicas)
}

func (s ScalingSpec) FailurePolicy() ReadFailurePolicy {
	if s.ReadFailurePolicy == "" {
		return ReadFailureZero
	}
	return s.ReadFailurePolicy
}

// Validate checks the structural invariants of the spec. Policy and source
// parameters are checked when they are compiled.
func (s ScalingSpec) Validate() error {
	var errs []error

	minReplicas, maxReplicas := s.Bounds()
	if minReplicas < 0 {
		errs = append(errs, errors.New("min_replicas must be >= 0"))
	}
	if maxReplicas < 0 {
		errs = append(errs, errors.New("max_replicas must be >= 0"))
	}
	if minReplicas > maxReplicas {
		errs = append(errs, fmt.Errorf("min_replicas (%d) must be <= max_replicas (%d)", minReplicas, maxReplicas))
	}
	if err := s.Safety.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch s.FailurePolicy() {
	case ReadFailureZero, ReadFailureSkip:
	default:
		errs = append(errs, fmt.Errorf("read_failure_policy must be one of: zero, skip"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, errors.Join(errs...))
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
