package domain

import (
	"fmt"
	"strings"
)

// Channels hard-wired into the presence feature. Clients publish open
// and close signals; the gateway republishes the derived online list.
const (
	ChannelRecordOpen  = "/event/record_open"
	ChannelRecordClose = "/event/record_close"
	ChannelOnlineUsers = "/event/online_users"
)

// Well-known payload field names.
const (
	FieldResourceID    = "resource_id"
	FieldUserID        = "user_id"
	FieldOnlineUserIDs = "online_user_ids"
	FieldCreatedAt     = "created_at"
	FieldCreatedBy     = "created_by"
)

// Event is one message on the backend bus.
type Event struct {
	Channel string                 `json:"channel"`
	Payload map[string]interface{} `json:"payload"`
}

// ClientMessage is a request sent by a browser connection.
type ClientMessage struct {
	EventType string                 `json:"eventType"`
	Channel   string                 `json:"channel"`
	Payload   map[string]interface{} `json:"payload"`
}

// OutboundMessage is what the gateway writes to a connection. The zero
// value serializes to the bare {} keep-alive frame.
type OutboundMessage struct {
	Channel string                 `json:"channel,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// EntityAccess is the result of a permission lookup. The zero value
// grants nothing.
type EntityAccess struct {
	Readable  bool
	Creatable bool
}

// StringField wraps a value in the bus schema's typed-field form.
func StringField(v string) map[string]interface{} {
	return map[string]interface{}{"string": v}
}

// FieldString extracts a string payload field, accepting both the
// plain and the typed-wrapper form.
func FieldString(payload map[string]interface{}, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]interface{}:
		if s, ok := t["string"].(string); ok {
			return s, true
		}
	}
	return "", false
}

// EntityFromChannel derives the entity name checked against the access
// store. Channels look like "/event/record_open"; the entity is the
// third path segment.
func EntityFromChannel(channel string) (string, error) {
	parts := strings.Split(channel, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("invalid channel name: %q", channel)
	}
	return parts[2], nil
}
