package models

import "time"

// Scaler is a managed target together with the spec it is reconciled against.
type Scaler struct {
	Target    ScalingTarget `json:"target" mapstructure:",squash"`
	Spec      ScalingSpec   `json:"spec" mapstructure:"spec"`
	CreatedAt time.Time     `json:"created_at,omitempty" mapstructure:"-"`
	UpdatedAt time.Time     `json:"updated_at,omitempty" mapstructure:"-"`
}

func (s Scaler) Validate() error {
	if err := s.Target.Validate(); err != nil {
		return err
	}
	return s.Spec.Validate()
}
