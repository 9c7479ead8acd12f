// Package sources adapts external systems into metric readings. Each
// MetricSourceConfig is resolved once into a typed Source by a Registry.
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// Source reads the current value of one metric.
type Source interface {
	Kind() Kind
	// ID is stable for the same configuration and is used to share
	// clients and circuit breakers across compiles.
	ID() string
	Read(ctx context.Context) (float64, error)
}

// Kind is the closed set of source tags accepted in a MetricSourceConfig.
type Kind string

const (
	KindPrometheus Kind = "prometheus"
	KindRedis      Kind = "redis"
	KindPubSub     Kind = "pubsub"
	KindStatic     Kind = "static"
)

func ParseKind(tag string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(tag))); kind {
	case KindPrometheus, KindRedis, KindPubSub, KindStatic:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownSource, tag)
	}
}

func unavailable(src Source, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, src.ID(), err)
}

func invalidConfig(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", models.ErrInvalidSourceConfig, kind, fmt.Sprintf(format, args...))
}

// requiredString reads a non-empty string parameter.
func requiredString(kind Kind, params models.Params, key string) (string, error) {
	if !params.Has(key) {
		return "", invalidConfig(kind, "%s is required", key)
	}
	v, err := params.String(key, "")
	if err != nil {
		return "", invalidConfig(kind, "%s: %v", key, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", invalidConfig(kind, "%s must not be empty", key)
	}
	return v, nil
}
