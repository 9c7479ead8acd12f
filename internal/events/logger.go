package events

import (
	"context"
	"sync"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/models"
)

// DecisionStore persists decision history.
type DecisionStore interface {
	Save(ctx context.Context, rec *models.DecisionRecord) error
}

// EventLogger drains a subscription, logs every event and persists
// decisions when a store is configured.
type EventLogger struct {
	store     DecisionStore
	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEventLogger takes a nil store when persistence is disabled.
func NewEventLogger(store DecisionStore, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		store:     store,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (l *EventLogger) Start() {
	l.wg.Add(1)
	go l.run()
}

// Stop returns once the drain loop has exited.
func (l *EventLogger) Stop() {
	l.cancel()
	l.wg.Wait()
}

func (l *EventLogger) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"target":     event.Target,
		"severity":   event.Severity,
		"trace_id":   event.TraceID,
	})

	switch event.Severity {
	case models.SeverityCritical:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Debug(event.Message)
	}

	if event.Type == models.EventTypeDecisionMade {
		l.persistDecision(event)
	}
}

func (l *EventLogger) persistDecision(event *models.Event) {
	if l.store == nil {
		return
	}
	d, ok := event.Data.(*models.ScalingDecision)
	if !ok {
		return
	}

	if err := l.store.Save(l.ctx, models.NewDecisionRecord(d)); err != nil {
		logger.WithTarget(d.Target).Errorf("Failed to persist scaling decision: %v", err)
	}
}
