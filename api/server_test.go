package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/generalscaler/internal/auth"
	"github.com/OldStager01/generalscaler/internal/metrics"
	"github.com/OldStager01/generalscaler/internal/orchestrator"
	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/internal/safety"
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/config"
	"github.com/OldStager01/generalscaler/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *workload.Memory, string) {
	t.Helper()

	w := workload.NewMemory()
	w.Set(models.NewTarget("prod", "web"), 3)

	m := metrics.New()
	engine := reconcile.NewEngine(w, safety.NewGovernor(), sources.NewRegistry(sources.Config{}),
		reconcile.WithHooks(m))
	orch := orchestrator.New(orchestrator.Config{Interval: time.Hour, Timeout: time.Second}, engine,
		orchestrator.OnRemove(m.Forget))
	t.Cleanup(orch.Stop)

	cfg := &config.Config{
		App:     config.AppConfig{Mode: "test"},
		API:     config.APIConfig{RateLimit: 1000, DefaultLimit: 50, MaxLimit: 500},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
	authService := auth.NewService("secret", time.Hour)
	token, _, err := authService.GenerateToken("ops")
	require.NoError(t, err)

	s := NewServer(cfg, authService, Deps{Scalers: orch, Metrics: m.Handler()})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, w, token
}

func request(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

const spec = `{
	"min_replicas": 1,
	"max_replicas": 10,
	"metrics": [{"type": "static", "config": {"value": 200}}],
	"safety": {"cooldown_seconds": 0, "max_scale_up_rate": 10}
}`

func TestServer_ScalerLifecycle(t *testing.T) {
	s, w, token := newTestServer(t)
	web := models.NewTarget("prod", "web")

	assert.Equal(t, http.StatusOK, request(s, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(s, http.MethodPut, "/scalers/prod/web", "", spec).Code)

	rec := request(s, http.MethodPut, "/scalers/prod/web", token, spec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Eventually(t, func() bool {
		n, err := w.CurrentReplicas(t.Context(), web)
		return err == nil && n == 6
	}, time.Second, 10*time.Millisecond)

	rec = request(s, http.MethodGet, "/scalers/prod/web", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":true`)

	rec = request(s, http.MethodPost, "/scalers/prod/web/reconcile", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actuated_replicas":10`)

	rec = request(s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `generalscaler_decisions_total{outcome="scaled_up",target="prod/web"}`)

	assert.Equal(t, http.StatusNotImplemented, request(s, http.MethodGet, "/scalers/prod/web/history", "", "").Code)

	assert.Equal(t, http.StatusNoContent, request(s, http.MethodDelete, "/scalers/prod/web", token, "").Code)
	assert.Equal(t, http.StatusNotFound, request(s, http.MethodGet, "/scalers/prod/web", "", "").Code)
	assert.NotContains(t, request(s, http.MethodGet, "/metrics", "", "").Body.String(), `target="prod/web"`)
}

func TestServer_RejectsInvalidSpec(t *testing.T) {
	s, _, token := newTestServer(t)

	rec := request(s, http.MethodPut, "/scalers/prod/web", token, `{"policy": {"type": "hpa"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "configuration")

	rec = request(s, http.MethodGet, "/scalers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}
