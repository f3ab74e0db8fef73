// Package protocol defines the messages pushed to websocket watchers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"keyloop/internal/player"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeProgress carries one playback progress event
	TypeProgress MessageType = "progress"

	// TypeStatus is sent on connect and whenever a run starts or ends
	TypeStatus MessageType = "status"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ProgressPayload is the payload for TypeProgress
type ProgressPayload struct {
	Event      string  `json:"event"`
	Macro      string  `json:"macro"`
	Step       int     `json:"step,omitempty"`
	Total      int     `json:"total,omitempty"`
	Iteration  int     `json:"iteration,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Key        string  `json:"key,omitempty"`
	Seconds    float64 `json:"seconds,omitempty"`
	Message    string  `json:"message"`
	Error      string  `json:"error,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Running   bool      `json:"running"`
	Macro     string    `json:"macro,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Started   time.Time `json:"started,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// FromProgress converts a player event to its wire form.
func FromProgress(p player.Progress) ProgressPayload {
	out := ProgressPayload{
		Event:      string(p.Event),
		Macro:      p.Macro,
		Step:       p.Step,
		Total:      p.Total,
		Iteration:  p.Iteration,
		Iterations: p.Iterations,
		Key:        p.Key,
		Seconds:    p.Duration.Seconds(),
		Message:    p.Message,
	}
	if p.Err != nil {
		out.Error = p.Err.Error()
	}
	return out
}

// Encode wraps payload in a Message and marshals it.
func Encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(Message{Type: t, Payload: raw})
}

// Decode parses a Message envelope; the payload is left raw.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decode message: missing type")
	}
	return msg, nil
}
