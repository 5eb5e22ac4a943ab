package gateway

import (
	"encoding/json"
	"time"

	"nimbus-ai/internal/domain"
)

// FrameType identifies the kind of frame sent over a WebSocket connection.
type FrameType string

const (
	FrameTypeEvent FrameType = "event"
	FrameTypeError FrameType = "error"
)

// Frame is the envelope the event feed sends to WebSocket clients.
type Frame struct {
	Type      FrameType       `json:"type"`
	Event     json.RawMessage `json:"event,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func eventFrame(event domain.Event) (Frame, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:      FrameTypeEvent,
		Event:     payload,
		Timestamp: time.Now().UTC(),
	}, nil
}
