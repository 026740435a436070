package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tablematch/go/internal/table/events"
)

// Event is the envelope pushed to clients over the socket.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of pushed event
type EventType string

const (
	EventTypeRefresh EventType = "refresh"
)

// NewRefreshEvent wraps a refresh in an envelope.
func NewRefreshEvent(refresh events.Refresh) (*Event, error) {
	data, err := json.Marshal(refresh)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh: %w", err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeRefresh,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Marshal encodes the envelope for the wire.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an envelope received from the socket.
func ParseEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeRefresh:
		var payload events.Refresh
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// Client message types.
const (
	ClientMessageIdentify = "identify"
)

// ClientMessage is sent by clients over an open socket.
type ClientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// ParseClientMessage decodes a client message.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("unmarshal client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("client message without type")
	}
	return msg, nil
}
