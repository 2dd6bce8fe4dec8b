package models

import "time"

// Message types for the load-state WebSocket feed
const (
	MessageTypeSnapshot    = "catalog_snapshot"
	MessageTypeLoadState   = "load_state"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriptionFilter narrows the feed to a set of sports. Empty means all.
type SubscriptionFilter struct {
	Sports []Sport `json:"sports,omitempty"`
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	ClientID         string    `json:"client_id"`
	ConnectedAt      time.Time `json:"connected_at"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
	LastMessageAt    time.Time `json:"last_message_at"`
	BufferSize       int       `json:"buffer_size"`
}

// ErrorMessage represents an error pushed to a WebSocket client
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
