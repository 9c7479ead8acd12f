package config

import (
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/pkg/database"
)

func (d DatabaseConfig) ToDBConfig() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		Name:            d.Name,
		User:            d.User,
		Password:        d.Password,
		MaxConnections:  d.MaxConnections,
		SSLMode:         d.SSLMode,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		PingTimeout:     d.PingTimeout,
	}
}

func (s SourcesConfig) ToSourcesConfig() sources.Config {
	return sources.Config{
		Prometheus: sources.PrometheusConfig{
			URL:      s.Prometheus.URL,
			Username: s.Prometheus.Username,
			Password: s.Prometheus.Password,
			Timeout:  s.Prometheus.Timeout,
		},
		RedisHost:     s.Redis.Host,
		RedisPort:     s.Redis.Port,
		RedisPassword: s.Redis.Password,
		PubSubProject: s.PubSub.ProjectID,
		Resilience: sources.ResilienceConfig{
			Enabled:       s.Resilience.Enabled,
			RetryAttempts: s.Resilience.RetryAttempts,
			RetryDelay:    s.Resilience.RetryDelay,
			MaxFailures:   s.Resilience.CircuitBreaker.MaxFailures,
			OpenTimeout:   s.Resilience.CircuitBreaker.Timeout,
		},
	}
}
