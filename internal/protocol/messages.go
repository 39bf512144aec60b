package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl    MessageType = "client_control"
	TypeSessionState     MessageType = "session_state"
	TypeUserTranscript   MessageType = "user_transcript"
	TypeAssistantMessage MessageType = "assistant_message"
	TypeSpeakingState    MessageType = "speaking_state"
	TypeLogEntry         MessageType = "log_entry"
	TypeErrorEvent       MessageType = "error_event"
)

// Client control actions.
const (
	ActionCancelConnection = "cancel_connection"
	ActionCancelVoiceTurn  = "cancel_voice_turn"
	ActionStopSpeaking     = "stop_speaking"
	ActionClearLog         = "clear_log"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

type SessionState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Kind      string      `json:"kind"`
	State     string      `json:"state"`
	Reason    string      `json:"reason,omitempty"`
	TSMs      int64       `json:"ts_ms"`
}

type UserTranscript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type AssistantMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	IsError   bool        `json:"is_error,omitempty"`
	TSMs      int64       `json:"ts_ms"`
}

type SpeakingState struct {
	Type     MessageType `json:"type"`
	Speaking bool        `json:"speaking"`
	TSMs     int64       `json:"ts_ms"`
}

type LogEntry struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	TSMs    int64       `json:"ts_ms"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
	Retryable bool        `json:"retryable"`
}

// ParseClientMessage decodes and validates an inbound websocket payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionCancelConnection, ActionCancelVoiceTurn, ActionStopSpeaking, ActionClearLog:
			return msg, nil
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
	default:
		return nil, ErrUnsupportedType
	}
}

// MessageTypeOf reports the wire type of an outbound payload.
func MessageTypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientControl:
		return m.Type, true
	case SessionState:
		return m.Type, true
	case UserTranscript:
		return m.Type, true
	case AssistantMessage:
		return m.Type, true
	case SpeakingState:
		return m.Type, true
	case LogEntry:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
