package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/pkg/errors"
)

// TopicSession is the topic all session lifecycle events are published on.
const TopicSession = "coder.session"

type EventType string

const (
	EventTypeConversationCreated EventType = "conversation.created"
	EventTypeTurnPersisted       EventType = "turn.persisted"
	EventTypeEditProposed        EventType = "edit.proposed"
	EventTypeTurnFailed          EventType = "turn.failed"
)

// SessionEvent describes one step of an ask or edit request.
type SessionEvent struct {
	Type           EventType            `json:"type"`
	Time           time.Time            `json:"time"`
	Persona        conversation.Persona `json:"persona"`
	ConversationID string               `json:"conversation_id,omitempty"`
	MessageIDs     []string             `json:"message_ids,omitempty"`
	ToolCallCount  int                  `json:"tool_call_count,omitempty"`
	FileCount      int                  `json:"file_count,omitempty"`
	Error          string               `json:"error,omitempty"`
	ErrorKind      string               `json:"error_kind,omitempty"`
}

func NewEvent(t EventType, persona conversation.Persona, conversationID string) *SessionEvent {
	return &SessionEvent{
		Type:           t,
		Time:           time.Now().UTC(),
		Persona:        persona,
		ConversationID: conversationID,
	}
}

func NewEventFromJson(b []byte) (*SessionEvent, error) {
	var e SessionEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "decode session event")
	}
	switch e.Type {
	case EventTypeConversationCreated, EventTypeTurnPersisted, EventTypeEditProposed, EventTypeTurnFailed:
		return &e, nil
	default:
		return nil, errors.Errorf("unknown event type %q", e.Type)
	}
}
