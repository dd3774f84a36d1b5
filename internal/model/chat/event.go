package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Channel event names, client to server.
const (
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"
)

// Channel event names, server to client. Typing relays reuse the
// client-side names without a payload.
const (
	EventConnected       = "connected"
	EventMessageReceived = "message received"
)

// Event is the JSON envelope exchanged over the channel in both
// directions.
type Event struct {
	Name      string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewEvent builds an envelope with an encoded payload. A nil payload
// produces a bare event.
func NewEvent(name string, payload any) (Event, error) {
	ev := Event{Name: name, Timestamp: time.Now().Unix()}
	if payload == nil {
		return ev, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %q payload: %w", name, err)
	}
	ev.Data = data
	return ev, nil
}

// ChatID decodes events whose payload is a bare chat id.
func (e Event) ChatID() (string, error) {
	var id string
	if err := json.Unmarshal(e.Data, &id); err != nil {
		return "", fmt.Errorf("decode %q chat id: %w", e.Name, err)
	}
	return id, nil
}

// Message decodes events that carry a full message.
func (e Event) Message() (Message, error) {
	var msg Message
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode %q message: %w", e.Name, err)
	}
	return msg, nil
}

// Identity decodes the user carried by a setup event.
func (e Event) Identity() (User, error) {
	var user User
	if err := json.Unmarshal(e.Data, &user); err != nil {
		return User{}, fmt.Errorf("decode %q identity: %w", e.Name, err)
	}
	return user, nil
}
