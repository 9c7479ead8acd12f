package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/models"
)

var web = models.NewTarget("prod", "web")

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	applied := bus.Subscribe(models.EventTypeScalingApplied)
	all := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeScalingApplied, web.Key(), "scaled"))
	bus.Publish(models.NewEvent(models.EventTypeSpecUpdated, web.Key(), "updated"))

	assert.Equal(t, "scaled", receive(t, applied).Message)
	assert.Equal(t, "scaled", receive(t, all).Message)
	assert.Equal(t, "updated", receive(t, all).Message)
	assert.Empty(t, applied)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeDecisionMade)
	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, web.Key(), "first"))
	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, web.Key(), "second"))

	assert.Equal(t, "first", receive(t, ch).Message)
	assert.Empty(t, ch)
}

func TestEventBus_UnsubscribeAndClose(t *testing.T) {
	bus := NewEventBus(4)
	all := bus.SubscribeAll()
	single := bus.Subscribe(models.EventTypeSpecRemoved)

	bus.Unsubscribe(all)
	_, ok := <-all
	assert.False(t, ok)

	bus.Publish(models.NewEvent(models.EventTypeSpecRemoved, web.Key(), "removed"))
	assert.Equal(t, "removed", receive(t, single).Message)

	bus.Close()
	_, ok = <-single
	assert.False(t, ok)

	bus.Publish(models.NewEvent(models.EventTypeSpecRemoved, web.Key(), "ignored"))
	bus.Close()
}

func decision(current, actuated int) *models.ScalingDecision {
	d := models.NewDecision(web, time.Now())
	d.Policy = "slo"
	d.CurrentReplicas = current
	d.DesiredReplicas = actuated
	d.ActuatedReplicas = actuated
	return d
}

func TestPublisher_OnDecision(t *testing.T) {
	blocked := decision(3, 3)
	blocked.Blocked = true
	blocked.BlockReason = models.BlockReasonCooldown
	blocked.CooldownRemaining = 90 * time.Second

	tests := []struct {
		name     string
		decision *models.ScalingDecision
		want     []models.EventType
		severity models.EventSeverity
	}{
		{name: "applied", decision: decision(3, 5), want: []models.EventType{models.EventTypeDecisionMade, models.EventTypeScalingApplied}, severity: models.SeverityInfo},
		{name: "no change", decision: decision(3, 3), want: []models.EventType{models.EventTypeDecisionMade}},
		{name: "blocked", decision: blocked, want: []models.EventType{models.EventTypeDecisionMade, models.EventTypeScalingBlocked}, severity: models.SeverityInfo},
		{
			name:     "write failed",
			decision: decision(3, 5).Fail(models.ErrReplicaWrite),
			want:     []models.EventType{models.EventTypeDecisionMade, models.EventTypeScalingFailed},
			severity: models.SeverityCritical,
		},
		{
			name:     "transient failure",
			decision: decision(0, 0).Fail(models.ErrReplicaRead),
			want:     []models.EventType{models.EventTypeDecisionMade, models.EventTypeReconcileFailed},
			severity: models.SeverityWarning,
		},
		{
			name:     "configuration failure",
			decision: decision(0, 0).Fail(models.ErrUnknownPolicy),
			want:     []models.EventType{models.EventTypeDecisionMade, models.EventTypeReconcileFailed},
			severity: models.SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewEventBus(10)
			defer bus.Close()
			all := bus.SubscribeAll()

			ctx := logger.WithTraceID(context.Background(), "trace-1")
			NewPublisher(bus).OnDecision(ctx, tt.decision, time.Millisecond)

			var got []models.EventType
			var last *models.Event
			for len(all) > 0 {
				last = <-all
				got = append(got, last.Type)
				assert.Equal(t, "trace-1", last.TraceID)
				assert.Equal(t, "prod/web", last.Target)
			}
			assert.Equal(t, tt.want, got)
			if tt.severity != "" {
				assert.Equal(t, tt.severity, last.Severity)
			}
		})
	}
}

func TestPublisher_WithTraceIDOverridesContext(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()
	ch := bus.Subscribe(models.EventTypeSpecRemoved)

	NewPublisher(bus).WithTraceID("fixed").SpecRemoved(logger.WithTraceID(context.Background(), "ctx"), web)
	assert.Equal(t, "fixed", receive(t, ch).TraceID)
}

type memoryStore struct {
	mu      sync.Mutex
	records []*models.DecisionRecord
	err     error
}

func (s *memoryStore) Save(_ context.Context, rec *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestEventLogger_PersistsDecisions(t *testing.T) {
	bus := NewEventBus(10)
	store := &memoryStore{}
	l := NewEventLogger(store, bus.SubscribeAll())
	l.Start()

	pub := NewPublisher(bus)
	pub.OnDecision(context.Background(), decision(3, 5), 0)
	pub.SpecRemoved(context.Background(), web)

	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, 5*time.Millisecond)
	l.Stop()
	bus.Close()

	rec := store.records[0]
	assert.Equal(t, "web", rec.Name)
	assert.Equal(t, models.OutcomeScaledUp, rec.Outcome)
	assert.Equal(t, 5, rec.ActuatedReplicas)
}

func TestEventLogger_NilStoreAndStoreErrors(t *testing.T) {
	ch := make(chan *models.Event, 2)
	ch <- models.NewEvent(models.EventTypeDecisionMade, web.Key(), "d").WithData(decision(3, 4))
	close(ch)

	l := NewEventLogger(nil, ch)
	l.Start()
	l.Stop()

	failing := &memoryStore{err: errors.New("db down")}
	ch2 := make(chan *models.Event, 1)
	ch2 <- models.NewEvent(models.EventTypeDecisionMade, web.Key(), "d").WithData(decision(3, 4))
	close(ch2)

	l2 := NewEventLogger(failing, ch2)
	l2.Start()
	require.Eventually(t, func() bool { return failing.len() == 1 }, time.Second, 5*time.Millisecond)
	l2.Stop()
}
