package models

import (
	"fmt"
	"strings"
)

// ScalingTarget identifies a managed workload. It is the key for all
// per-target state.
type ScalingTarget struct {
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Name      string `json:"name" mapstructure:"name"`
}

func NewTarget(namespace, name string) ScalingTarget {
	return ScalingTarget{Namespace: namespace, Name: name}
}

// ParseTarget parses a "namespace/name" key. A bare name lands in "default".
func ParseTarget(key string) (ScalingTarget, error) {
	parts := strings.Split(key, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return NewTarget("default", parts[0]), nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return NewTarget(parts[0], parts[1]), nil
	}
	return ScalingTarget{}, fmt.Errorf("invalid target %q: expected namespace/name", key)
}

func (t ScalingTarget) Key() string {
	return t.Namespace + "/" + t.Name
}

func (t ScalingTarget) String() string {
	return t.Key()
}

func (t ScalingTarget) Validate() error {
	if t.Namespace == "" {
		return fmt.Errorf("%w: target namespace is required", ErrInvalidSpec)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: target name is required", ErrInvalidSpec)
	}
	return nil
}
