// Package protocol defines the websocket messages for the operator console,
// a text-only surface for exercising the receptionist without placing a
// phone call.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeConsoleAsk   MessageType = "console_ask"
	TypeConsoleEnd   MessageType = "console_end"
	TypeConsoleReply MessageType = "console_reply"
	TypeErrorEvent   MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ConsoleAsk submits one caller utterance. CallID is empty on the first
// message; the server assigns one and echoes it back on every reply.
type ConsoleAsk struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id,omitempty"`
	Text   string      `json:"text"`
}

// ConsoleEnd hangs up the simulated call.
type ConsoleEnd struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id"`
}

// ConsoleReply carries the receptionist's answer for one turn.
type ConsoleReply struct {
	Type      MessageType `json:"type"`
	CallID    string      `json:"call_id"`
	Text      string      `json:"text"`
	Action    string      `json:"action"`
	TurnCount int         `json:"turn_count"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id,omitempty"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// ParseClientMessage decodes and validates one client-originated message.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeConsoleAsk:
		var msg ConsoleAsk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid console_ask")
		}
		return msg, nil
	case TypeConsoleEnd:
		var msg ConsoleEnd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" {
			return nil, errors.New("invalid console_end")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
