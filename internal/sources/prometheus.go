package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/config"
	"github.com/prometheus/common/model"

	"github.com/OldStager01/generalscaler/internal/logger"
)

var errNoSamples = errors.New("query returned no samples")

type PrometheusConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// NewPrometheusAPI builds a query client, with basic auth when a username is set.
func NewPrometheusAPI(cfg PrometheusConfig) (promv1.API, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prometheus url is not provided")
	}

	roundTripper := api.DefaultRoundTripper
	if cfg.Username != "" {
		roundTripper = config.NewBasicAuthRoundTripper(
			config.NewInlineSecret(cfg.Username),
			config.NewInlineSecret(cfg.Password),
			api.DefaultRoundTripper,
		)
	}

	client, err := api.NewClient(api.Config{
		Address:      cfg.URL,
		RoundTripper: roundTripper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return promv1.NewAPI(client), nil
}

// PrometheusSource runs an instant query and reports the first sample.
type PrometheusSource struct {
	api     promv1.API
	url     string
	query   string
	timeout time.Duration
	now     func() time.Time
}

func NewPrometheusSource(client promv1.API, url, query string, timeout time.Duration) *PrometheusSource {
	return &PrometheusSource{
		api:     client,
		url:     url,
		query:   query,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *PrometheusSource) Kind() Kind { return KindPrometheus }

func (s *PrometheusSource) ID() string {
	return fmt.Sprintf("prometheus:%s|%s", s.url, s.query)
}

func (s *PrometheusSource) Read(ctx context.Context) (float64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, warnings, err := s.api.Query(ctx, s.query, s.now())
	if err != nil {
		return 0, unavailable(s, err)
	}
	if len(warnings) > 0 {
		logger.WithField("source", s.ID()).Warnf("Prometheus query warnings: %v", warnings)
	}

	value, err := firstSample(result)
	if err != nil {
		return 0, unavailable(s, err)
	}
	return value, nil
}

func firstSample(result model.Value) (float64, error) {
	var v model.SampleValue
	switch r := result.(type) {
	case model.Vector:
		if len(r) == 0 {
			return 0, errNoSamples
		}
		v = r[0].Value
	case *model.Scalar:
		v = r.Value
	case model.Matrix:
		if len(r) == 0 || len(r[0].Values) == 0 {
			return 0, errNoSamples
		}
		v = r[0].Values[len(r[0].Values)-1].Value
	default:
		return 0, fmt.Errorf("unsupported result type %T", result)
	}

	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("sample is not finite: %v", f)
	}
	return f, nil
}
