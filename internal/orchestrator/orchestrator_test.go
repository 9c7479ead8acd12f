package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/OldStager01/generalscaler/internal/reconcile"
	"github.com/OldStager01/generalscaler/internal/safety"
	"github.com/OldStager01/generalscaler/internal/sources"
	"github.com/OldStager01/generalscaler/internal/workload"
	"github.com/OldStager01/generalscaler/pkg/models"
)

var web = models.NewTarget("prod", "web")

type memoryStore struct {
	mu      sync.Mutex
	scalers map[models.ScalingTarget]models.Scaler
}

func newMemoryStore(scalers ...models.Scaler) *memoryStore {
	s := &memoryStore{scalers: make(map[models.ScalingTarget]models.Scaler)}
	for _, sc := range scalers {
		s.scalers[sc.Target] = sc
	}
	return s
}

func (s *memoryStore) List(context.Context) ([]*models.Scaler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Scaler, 0, len(s.scalers))
	for _, sc := range s.scalers {
		sc := sc
		out = append(out, &sc)
	}
	return out, nil
}

func (s *memoryStore) Upsert(_ context.Context, sc *models.Scaler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalers[sc.Target] = *sc
	return nil
}

func (s *memoryStore) Delete(_ context.Context, target models.ScalingTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scalers[target]; !ok {
		return ErrScalerNotFound
	}
	delete(s.scalers, target)
	return nil
}

func (s *memoryStore) has(target models.ScalingTarget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scalers[target]
	return ok
}

func staticScaler(target models.ScalingTarget, value float64) models.Scaler {
	return models.Scaler{
		Target: target,
		Spec: models.ScalingSpec{
			MinReplicas: ptr.To(1),
			MaxReplicas: ptr.To(10),
			Metrics: []models.MetricSourceConfig{
				{Type: "static", Config: map[string]any{"value": value}},
			},
			Safety: models.SafetyConfig{CooldownSeconds: ptr.To(0), MaxScaleUpRate: ptr.To(10)},
		},
	}
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *workload.Memory) {
	t.Helper()
	w := workload.NewMemory()
	w.Set(web, 3)

	engine := reconcile.NewEngine(w, safety.NewGovernor(), sources.NewRegistry(sources.Config{}))
	o := New(Config{Interval: time.Hour, Timeout: time.Second}, engine, opts...)
	t.Cleanup(o.Stop)
	return o, w
}

func replicas(t *testing.T, w *workload.Memory, target models.ScalingTarget) int {
	t.Helper()
	n, err := w.CurrentReplicas(context.Background(), target)
	require.NoError(t, err)
	return n
}

func TestOrchestrator_StartReconcilesImmediately(t *testing.T) {
	o, w := newTestOrchestrator(t)

	require.NoError(t, o.Start(context.Background(), []models.Scaler{staticScaler(web, 200)}))

	assert.Eventually(t, func() bool { return replicas(t, w, web) == 6 }, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		statuses := o.List()
		return len(statuses) == 1 && statuses[0].LastActuation != nil
	}, time.Second, 10*time.Millisecond)

	st, err := o.Get(web)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, 6, st.LastActuation.Replicas)
	require.NotNil(t, st.LastDecision)
}

func TestOrchestrator_StartSkipsInvalidScalers(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	bad := staticScaler(models.NewTarget("prod", "api"), 100)
	bad.Spec.Policy.Type = "hpa"

	err := o.Start(context.Background(), []models.Scaler{staticScaler(web, 100), bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownPolicy)

	statuses := o.List()
	require.Len(t, statuses, 1)
	assert.Equal(t, web, statuses[0].Scaler.Target)
}

func TestOrchestrator_StartLoadsStore(t *testing.T) {
	store := newMemoryStore(staticScaler(web, 200))
	o, w := newTestOrchestrator(t, WithStore(store))

	require.NoError(t, o.Start(context.Background(), nil))
	assert.Eventually(t, func() bool { return replicas(t, w, web) == 6 }, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_ApplyUpdatesRunningPipeline(t *testing.T) {
	store := newMemoryStore()
	o, w := newTestOrchestrator(t, WithStore(store))
	ctx := context.Background()

	created, err := o.Apply(ctx, staticScaler(web, 100))
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, store.has(web))

	updated, err := o.Apply(ctx, staticScaler(web, 300))
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	assert.Eventually(t, func() bool { return replicas(t, w, web) == 9 }, time.Second, 10*time.Millisecond)
	assert.Len(t, o.List(), 1)
}

func TestOrchestrator_OnApplyRunsBeforePipeline(t *testing.T) {
	apiTarget := models.NewTarget("prod", "api")
	w := workload.NewMemory()
	var applied []models.ScalingTarget
	engine := reconcile.NewEngine(w, safety.NewGovernor(), sources.NewRegistry(sources.Config{}))
	o := New(Config{Interval: time.Hour, Timeout: time.Second}, engine, OnApply(func(s models.Scaler) {
		applied = append(applied, s.Target)
		minReplicas, _ := s.Spec.Bounds()
		w.Ensure(s.Target, minReplicas)
	}))
	t.Cleanup(o.Stop)

	bad := staticScaler(web, 100)
	bad.Spec.Policy.Type = "hpa"
	_, err := o.Apply(context.Background(), bad)
	require.Error(t, err)
	assert.Empty(t, applied)

	_, err = o.Apply(context.Background(), staticScaler(apiTarget, 200))
	require.NoError(t, err)
	assert.Equal(t, []models.ScalingTarget{apiTarget}, applied)

	assert.Eventually(t, func() bool { return replicas(t, w, apiTarget) == 2 }, time.Second, 10*time.Millisecond)
}

func TestOrchestrator_ApplyRejectsInvalidSpec(t *testing.T) {
	store := newMemoryStore()
	o, _ := newTestOrchestrator(t, WithStore(store))

	bad := staticScaler(web, 100)
	bad.Spec.MinReplicas = ptr.To(5)
	bad.Spec.MaxReplicas = ptr.To(2)

	_, err := o.Apply(context.Background(), bad)
	require.ErrorIs(t, err, models.ErrInvalidSpec)
	assert.False(t, store.has(web))
	assert.Empty(t, o.List())
}

func TestOrchestrator_Reconcile(t *testing.T) {
	o, w := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.Reconcile(ctx, web)
	require.ErrorIs(t, err, ErrScalerNotFound)

	_, err = o.Apply(ctx, staticScaler(web, 100))
	require.NoError(t, err)

	w.Set(web, 1)
	d, err := o.Reconcile(ctx, web)
	require.NoError(t, err)
	assert.Equal(t, 1, d.CurrentReplicas)
	assert.Equal(t, 1, d.ActuatedReplicas)
}

func TestOrchestrator_Remove(t *testing.T) {
	store := newMemoryStore()
	var removed []models.ScalingTarget
	o, _ := newTestOrchestrator(t, WithStore(store), OnRemove(func(target models.ScalingTarget) {
		removed = append(removed, target)
	}))
	ctx := context.Background()

	_, err := o.Apply(ctx, staticScaler(web, 100))
	require.NoError(t, err)

	require.NoError(t, o.Remove(ctx, web))
	assert.False(t, store.has(web))
	assert.Equal(t, []models.ScalingTarget{web}, removed)

	_, err = o.Get(web)
	assert.ErrorIs(t, err, ErrScalerNotFound)
	assert.ErrorIs(t, o.Remove(ctx, web), ErrScalerNotFound)
}

func TestOrchestrator_GetReportsCooldown(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w := workload.NewMemory()
	w.Set(web, 3)
	engine := reconcile.NewEngine(w, safety.NewGovernor(), sources.NewRegistry(sources.Config{}),
		reconcile.WithClock(func() time.Time { return fixed }))
	o := New(Config{Interval: time.Hour}, engine, WithClock(func() time.Time { return fixed.Add(100 * time.Second) }))
	t.Cleanup(o.Stop)

	sc := staticScaler(web, 200)
	sc.Spec.Safety.CooldownSeconds = ptr.To(300)
	_, err := o.Apply(context.Background(), sc)
	require.NoError(t, err)

	d, err := o.Reconcile(context.Background(), web)
	require.NoError(t, err)
	require.True(t, d.Applied || d.Blocked)

	st, err := o.Get(web)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Second, st.CooldownRemaining)
}

func TestOrchestrator_ResetCooldown(t *testing.T) {
	o, w := newTestOrchestrator(t)
	ctx := context.Background()

	assert.ErrorIs(t, o.ResetCooldown(web), ErrScalerNotFound)

	sc := staticScaler(web, 200)
	sc.Spec.Safety.CooldownSeconds = ptr.To(3600)
	_, err := o.Apply(ctx, sc)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return replicas(t, w, web) == 6 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		st, err := o.Get(web)
		return err == nil && st.LastActuation != nil
	}, time.Second, 10*time.Millisecond)

	d, err := o.Reconcile(ctx, web)
	require.NoError(t, err)
	assert.True(t, d.Blocked)

	require.NoError(t, o.ResetCooldown(web))
	d, err = o.Reconcile(ctx, web)
	require.NoError(t, err)
	assert.False(t, d.Blocked)
	assert.Equal(t, 10, d.ActuatedReplicas)
}
