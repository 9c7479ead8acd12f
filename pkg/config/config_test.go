package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/generalscaler/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: generalscaler\n"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Mode)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, "http://prometheus:9090", cfg.Sources.Prometheus.URL)
	assert.Equal(t, "redis", cfg.Sources.Redis.Host)
	assert.Equal(t, 6379, cfg.Sources.Redis.Port)
	assert.Equal(t, 3, cfg.Sources.Resilience.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sources.Resilience.RetryDelay)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Empty(t, cfg.Scalers)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Scalers(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scalers:
  - namespace: prod
    name: web
    spec:
      min_replicas: 2
      max_replicas: 20
      metrics:
        - type: prometheus
          config:
            query: sum(rate(http_requests_total[1m]))
          target_value: 50
      policy:
        type: cost
        config:
          maxCostPerHour: 10
          costPerPod: 1
      safety:
        cooldown_seconds: 0
`))
	require.NoError(t, err)
	require.Len(t, cfg.Scalers, 1)

	s := cfg.Scalers[0]
	assert.Equal(t, models.NewTarget("prod", "web"), s.Target)
	minReplicas, maxReplicas := s.Spec.Bounds()
	assert.Equal(t, 2, minReplicas)
	assert.Equal(t, 20, maxReplicas)
	require.Len(t, s.Spec.Metrics, 1)
	assert.Equal(t, "prometheus", s.Spec.Metrics[0].Type)
	assert.Equal(t, 50.0, s.Spec.Metrics[0].Target())
	assert.Equal(t, "cost", s.Spec.Policy.Type)
	assert.Equal(t, time.Duration(0), s.Spec.Safety.Cooldown())
	assert.Equal(t, models.DefaultMaxScaleUpRate, s.Spec.Safety.ScaleUpLimit())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GENERALSCALER_API_PORT", "9999")
	t.Setenv("GENERALSCALER_RECONCILE_INTERVAL", "1m")

	cfg, err := Load(writeConfig(t, "api:\n  port: 8081\n"))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, "app:\n  mode: test\n"))
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.App.Mode = "staging" },
			wantErr: "app.mode",
		},
		{
			name:    "timeout exceeds interval",
			mutate:  func(c *Config) { c.Reconcile.Timeout = time.Hour },
			wantErr: "reconcile.timeout",
		},
		{
			name: "kubeconfig required out of cluster",
			mutate: func(c *Config) {
				c.Kubernetes.InCluster = false
				c.Kubernetes.Kubeconfig = ""
			},
			wantErr: "kubernetes.kubeconfig",
		},
		{
			name: "database checked only when enabled",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Host = ""
			},
			wantErr: "database.host",
		},
		{
			name:    "default secret in production",
			mutate:  func(c *Config) { c.App.Mode = "production" },
			wantErr: "api.jwt_secret",
		},
		{
			name: "invalid scaler",
			mutate: func(c *Config) {
				c.Scalers = []models.Scaler{{Target: models.NewTarget("prod", "")}}
			},
			wantErr: "scalers[0]",
		},
		{
			name: "duplicate scaler",
			mutate: func(c *Config) {
				c.Scalers = []models.Scaler{
					{Target: models.NewTarget("prod", "web")},
					{Target: models.NewTarget("prod", "web")},
				}
			},
			wantErr: "duplicate target prod/web",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSourcesConfig_ToSourcesConfig(t *testing.T) {
	cfg := validConfig(t)
	sc := cfg.Sources.ToSourcesConfig()

	assert.Equal(t, "http://prometheus:9090", sc.Prometheus.URL)
	assert.Equal(t, 6379, sc.RedisPort)
	assert.True(t, sc.Resilience.Enabled)
	assert.Equal(t, 5, sc.Resilience.MaxFailures)
	assert.Equal(t, 30*time.Second, sc.Resilience.OpenTimeout)
}
