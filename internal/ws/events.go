package ws

import (
	"encoding/json"
	"time"
)

// Client → server
const (
	EventJoin       = "join"
	EventLeave      = "leave"
	EventTyping     = "typing"
	EventStopTyping = "stop-typing"
	EventPing       = "ping"
)

// Server → client
const (
	EventMessageSent    = "message-sent"
	EventMessageEdited  = "message-edited"
	EventMessageDeleted = "message-deleted"
	EventMessageRead    = "message-read"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventQueueChanged   = "queue-changed"
	EventPong           = "pong"
	EventError          = "error"
)

// Event is the envelope for every socket frame. Room names the room the
// event belongs to so multiplexed clients can filter.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type MessageDeletedPayload struct {
	ID        string     `json:"id"`
	Room      string     `json:"room"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type MessageReadPayload struct {
	Room       string   `json:"room"`
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids"`
}

type TypingPayload struct {
	Room       string `json:"room"`
	UserID     string `json:"user_id"`
	SenderName string `json:"sender_name"`
	ChatType   string `json:"chat_type"`
	Active     bool   `json:"active"`
}

type PresencePayload struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event stamped with the current time.
func NewEvent(eventType, room string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Room: room, Timestamp: time.Now().UnixMilli()}
	if payload == nil {
		return evt, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt.Payload = data
	return evt, nil
}
