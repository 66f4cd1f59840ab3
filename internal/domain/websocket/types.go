// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Jornada events (server -> client)
	EventTypeJornadaOpened EventType = "jornada:opened"
	EventTypeJornadaClosed EventType = "jornada:closed"
	EventTypeJornadaState  EventType = "jornada:state"

	// Jornada requests (client -> server)
	EventTypeJornadaStatus EventType = "jornada:status"

	// Session events
	EventTypeSessionChanged  EventType = "session:changed"
	EventTypeSessionCleared  EventType = "session:cleared"
	EventTypeSessionActivity EventType = "session:activity"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelJornada ChannelType = "jornada"
	ChannelSession ChannelType = "session"
)

// DefaultChannels are subscribed on connect.
var DefaultChannels = []ChannelType{ChannelJornada, ChannelSession}

// ChannelOf returns the channel an event type is delivered on.
func ChannelOf(t EventType) (ChannelType, bool) {
	switch t {
	case EventTypeJornadaOpened, EventTypeJornadaClosed, EventTypeJornadaState:
		return ChannelJornada, true
	case EventTypeSessionChanged, EventTypeSessionCleared:
		return ChannelSession, true
	}
	return "", false
}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ActivityRequest reports a user interaction from the page.
type ActivityRequest struct {
	Event string `json:"event"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
