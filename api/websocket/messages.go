package websocket

import (
	"encoding/json"
	"time"

	"github.com/OldStager01/generalscaler/pkg/models"
)

type MessageType string

const (
	MessageTypeDecision     MessageType = "decision"
	MessageTypeScaling      MessageType = "scaling"
	MessageTypeBlocked      MessageType = "blocked"
	MessageTypeFailure      MessageType = "failure"
	MessageTypeSpec         MessageType = "spec"
	MessageTypeSubscription MessageType = "subscription_update"
	MessageTypeError        MessageType = "error"
)

type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	Target    string      `json:"target,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, target, message string) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		Target:    target,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (m *OutgoingMessage) JSON() []byte {
	data, _ := json.Marshal(m)
	return data
}

// FromEvent converts a bus event. It returns nil for event types that are
// not streamed.
func FromEvent(event *models.Event) *OutgoingMessage {
	msgType := mapEventType(event.Type)
	if msgType == "" {
		return nil
	}
	return &OutgoingMessage{
		Type:      msgType,
		Event:     string(event.Type),
		Target:    event.Target,
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		TraceID:   event.TraceID,
		Data:      event.Data,
	}
}

func mapEventType(eventType models.EventType) MessageType {
	switch eventType {
	case models.EventTypeDecisionMade:
		return MessageTypeDecision
	case models.EventTypeScalingApplied:
		return MessageTypeScaling
	case models.EventTypeScalingBlocked:
		return MessageTypeBlocked
	case models.EventTypeScalingFailed, models.EventTypeReconcileFailed:
		return MessageTypeFailure
	case models.EventTypeSpecUpdated, models.EventTypeSpecRemoved:
		return MessageTypeSpec
	default:
		return ""
	}
}
