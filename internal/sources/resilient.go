package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/internal/resilience"
	"github.com/OldStager01/generalscaler/pkg/models"
)

type ResilienceConfig struct {
	Enabled       bool
	RetryAttempts int
	RetryDelay    time.Duration
	MaxFailures   int
	OpenTimeout   time.Duration
}

// ResilientSource retries a source and trips a circuit breaker after
// repeated failures.
type ResilientSource struct {
	source         Source
	circuitBreaker *resilience.CircuitBreaker
	retryAttempts  int
	retryDelay     time.Duration
}

func NewResilientSource(source Source, cb *resilience.CircuitBreaker, retryAttempts int, retryDelay time.Duration) *ResilientSource {
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	return &ResilientSource{
		source:         source,
		circuitBreaker: cb,
		retryAttempts:  retryAttempts,
		retryDelay:     retryDelay,
	}
}

func (s *ResilientSource) Kind() Kind { return s.source.Kind() }

func (s *ResilientSource) ID() string { return s.source.ID() }

func (s *ResilientSource) Unwrap() Source { return s.source }

func (s *ResilientSource) Read(ctx context.Context) (float64, error) {
	var value float64

	err := s.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= s.retryAttempts; attempt++ {
			v, err := s.source.Read(ctx)
			if err == nil {
				value = v
				return nil
			}

			lastErr = err
			logger.WithField("source", s.ID()).Debugf(
				"Read attempt %d/%d failed: %v",
				attempt, s.retryAttempts, err,
			)

			if attempt < s.retryAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryDelay * time.Duration(attempt)):
				}
			}
		}
		return lastErr
	})

	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		return 0, fmt.Errorf("%w: %s: %w", models.ErrSourceUnavailable, s.ID(), err)
	case errors.Is(err, models.ErrSourceUnavailable):
		return 0, err
	default:
		return 0, unavailable(s, err)
	}
}

func (s *ResilientSource) CircuitState() resilience.State {
	return s.circuitBreaker.State()
}
