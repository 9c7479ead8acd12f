package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/generalscaler/internal/auth"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/models"
)

const testSecret = "cli-test-secret"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfig(t *testing.T) string {
	return writeFile(t, "config.yaml", `
app:
  mode: development
  log_level: error
kubernetes:
  enabled: false
api:
  jwt_secret: `+testSecret+`
`)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluate_PrintsDryRunDecision(t *testing.T) {
	spec := writeFile(t, "spec.yaml", `
min_replicas: 1
max_replicas: 10
metrics:
  - type: static
    config:
      value: 200
    target_value: 100
`)

	out, err := execute(t, "evaluate", "--config", testConfig(t), "--spec", spec, "--target", "prod/web", "--replicas", "3")
	require.NoError(t, err)

	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.EqualValues(t, 3, d["current_replicas"])
	assert.EqualValues(t, 6, d["desired_replicas"])
	assert.EqualValues(t, 5, d["actuated_replicas"])
	assert.Equal(t, true, d["rate_limited"])
	assert.Equal(t, true, d["dry_run"])
	assert.Equal(t, false, d["applied"])
}

func TestEvaluate_ReportsConfigurationFailure(t *testing.T) {
	spec := writeFile(t, "spec.json", `{"metrics":[{"type":"carrier-pigeon"}]}`)

	out, err := execute(t, "evaluate", "--config", testConfig(t), "--spec", spec, "--replicas", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
	assert.Contains(t, out, `"failure_kind": "configuration"`)
}

func TestEvaluate_RequiresSpec(t *testing.T) {
	_, err := execute(t, "evaluate", "--config", testConfig(t))
	require.Error(t, err)
}

func TestEvaluate_RejectsBadTarget(t *testing.T) {
	spec := writeFile(t, "spec.yaml", "metrics: []\n")

	_, err := execute(t, "evaluate", "--config", testConfig(t), "--spec", spec, "--target", "a/b/c")
	require.Error(t, err)
}

func TestSeedMemory_RegistersAtLowerBound(t *testing.T) {
	ctx := context.Background()
	mem := workload.NewMemory()
	seed := seedMemory(mem)
	target := models.NewTarget("prod", "web")
	minReplicas := 3

	seed(models.Scaler{Target: target, Spec: models.ScalingSpec{MinReplicas: &minReplicas}})
	got, err := mem.CurrentReplicas(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	require.NoError(t, mem.SetReplicas(ctx, target, 7))
	seed(models.Scaler{Target: target, Spec: models.ScalingSpec{MinReplicas: &minReplicas}})
	got, err = mem.CurrentReplicas(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestToken_MintsVerifiableToken(t *testing.T) {
	out, err := execute(t, "token", "--config", testConfig(t), "--subject", "ci-bot", "--duration", "5m")
	require.NoError(t, err)

	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	claims, err := auth.NewService(testSecret, time.Hour).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestLoadConfig_InvalidConfigFails(t *testing.T) {
	path := writeFile(t, "config.yaml", "reconcile:\n  interval: -1s\n")

	_, err := execute(t, "token", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
