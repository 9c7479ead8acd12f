package models

import "time"

type EventType string

const (
	EventTypeDecisionMade    EventType = "decision_made"
	EventTypeScalingApplied  EventType = "scaling_applied"
	EventTypeScalingBlocked  EventType = "scaling_blocked"
	EventTypeScalingFailed   EventType = "scaling_failed"
	EventTypeReconcileFailed EventType = "reconcile_failed"
	EventTypeSpecUpdated     EventType = "spec_updated"
	EventTypeSpecRemoved     EventType = "spec_removed"
)

// AllEventTypes lists every event type the bus routes.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeDecisionMade,
		EventTypeScalingApplied,
		EventTypeScalingBlocked,
		EventTypeScalingFailed,
		EventTypeReconcileFailed,
		EventTypeSpecUpdated,
		EventTypeSpecRemoved,
	}
}

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	Target    string        `json:"target,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, target, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  SeverityInfo,
		Target:    target,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}
