package sse

import "encoding/json"

const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeMessage is used for frames without a "type" field.
	EventTypeMessage = "message"

	// EventTypeSnapshot carries the current state sent on subscribe.
	EventTypeSnapshot = "snapshot"
)

// eventType reads the "type" field of a JSON frame.
func eventType(data []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
		return EventTypeMessage
	}
	return head.Type
}
