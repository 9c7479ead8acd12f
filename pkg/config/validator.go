package config

import (
	"errors"
	"fmt"
)

const defaultJWTSecret = "change-me-in-production"

func (c *Config) Validate() error {
	var errs []error

	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, errors.New("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, errors.New("app.log_level must be one of: debug, info, warn, error"))
	}

	if c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("reconcile.interval must be positive"))
	}
	if c.Reconcile.Timeout <= 0 {
		errs = append(errs, errors.New("reconcile.timeout must be positive"))
	}
	if c.Reconcile.Timeout > c.Reconcile.Interval {
		errs = append(errs, errors.New("reconcile.timeout must not exceed reconcile.interval"))
	}

	if c.Sources.Redis.Port <= 0 || c.Sources.Redis.Port > 65535 {
		errs = append(errs, errors.New("sources.redis.port must be between 1 and 65535"))
	}
	if c.Sources.Resilience.Enabled && c.Sources.Resilience.RetryAttempts <= 0 {
		errs = append(errs, errors.New("sources.resilience.retry_attempts must be positive"))
	}

	if c.Kubernetes.Enabled && !c.Kubernetes.InCluster && c.Kubernetes.Kubeconfig == "" {
		errs = append(errs, errors.New("kubernetes.kubeconfig is required when not running in cluster"))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
		if c.Database.MaxConnections <= 0 {
			errs = append(errs, errors.New("database.max_connections must be positive"))
		}
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			errs = append(errs, errors.New("api.port must be between 1 and 65535"))
		}
		if c.API.DefaultLimit <= 0 || c.API.DefaultLimit > c.API.MaxLimit {
			errs = append(errs, errors.New("api.default_limit must be positive and <= api.max_limit"))
		}
	}
	if c.API.JWTSecret == "" {
		errs = append(errs, errors.New("api.jwt_secret is required"))
	}
	if c.App.Mode == "production" && c.API.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("api.jwt_secret must be changed in production"))
	}

	seen := make(map[string]bool, len(c.Scalers))
	for i, s := range c.Scalers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scalers[%d]: %w", i, err))
			continue
		}
		key := s.Target.Key()
		if seen[key] {
			errs = append(errs, fmt.Errorf("scalers[%d]: duplicate target %s", i, key))
		}
		seen[key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return nil
}
