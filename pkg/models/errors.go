package models

import "errors"

var (
	ErrInvalidSpec         = errors.New("invalid scaling spec")
	ErrUnknownPolicy       = errors.New("unknown scaling policy")
	ErrInvalidPolicyConfig = errors.New("invalid policy config")
	ErrUnknownSource       = errors.New("unknown metric source")
	ErrInvalidSourceConfig = errors.New("invalid metric source config")
	ErrSourceUnavailable   = errors.New("metric source unavailable")
	ErrReplicaRead         = errors.New("failed to read replica count")
	ErrReplicaWrite        = errors.New("failed to write replica count")
	ErrTargetNotFound      = errors.New("scaling target not found")
)

// FailureKind classifies why a reconcile produced no actuation.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureConfiguration FailureKind = "configuration"
	FailureTransient     FailureKind = "transient"
	FailureInvariant     FailureKind = "invariant"
)

// ClassifyError maps an error onto the reconcile failure taxonomy.
func ClassifyError(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidSpec):
		return FailureInvariant
	case errors.Is(err, ErrUnknownPolicy),
		errors.Is(err, ErrInvalidPolicyConfig),
		errors.Is(err, ErrUnknownSource),
		errors.Is(err, ErrInvalidSourceConfig):
		return FailureConfiguration
	default:
		return FailureTransient
	}
}
