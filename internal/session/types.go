package session

import (
	"time"

	"github.com/roadsense/companiond/internal/capability"
)

// Kind distinguishes the two live interaction types. Each kind has its own
// single-flight namespace.
type Kind string

const (
	KindConnection Kind = "connection"
	KindVoiceTurn  Kind = "voice_turn"
)

// State is the session lifecycle position. Failed and Ended are terminal; a
// new request always starts a new session.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateFailed     State = "failed"
	StateEnded      State = "ended"
)

func (s State) Terminal() bool {
	return s == StateFailed || s == StateEnded
}

// Session is one live interaction: a device connection attempt or a voice
// assistant turn. The external handle it owns is never exposed and is
// released on the terminal transition.
type Session struct {
	ID        string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Device is set for connection sessions.
	Device *capability.DeviceDescriptor `json:"device,omitempty"`

	// Error fields are set only in the failed state.
	ErrorCode   capability.Code `json:"error_code,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}

func clone(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Device != nil {
		d := *s.Device
		c.Device = &d
	}
	return &c
}
