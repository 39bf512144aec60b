package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageControl(t *testing.T) {
	for _, action := range []string{
		ActionCancelConnection, ActionCancelVoiceTurn, ActionStopSpeaking, ActionClearLog,
	} {
		raw := []byte(`{"type":"client_control","action":"` + action + `"}`)
		msg, err := ParseClientMessage(raw)
		if err != nil {
			t.Fatalf("parse %s: %v", action, err)
		}
		ctrl, ok := msg.(ClientControl)
		if !ok {
			t.Fatalf("expected ClientControl, got %T", msg)
		}
		if ctrl.Action != action {
			t.Fatalf("expected action %q, got %q", action, ctrl.Action)
		}
	}
}

func TestParseClientMessageRejectsUnknownAction(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_control","action":"self_destruct"}`))
	if err == nil {
		t.Fatal("expected an error for unknown action")
	}
}

func TestParseClientMessageRejectsServerTypes(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"session_state","state":"active"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestParseClientMessageRejectsGarbage(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatal("expected an error for malformed json")
	}
}

func TestMessageTypeOf(t *testing.T) {
	cases := []struct {
		msg  any
		want MessageType
	}{
		{SessionState{Type: TypeSessionState}, TypeSessionState},
		{UserTranscript{Type: TypeUserTranscript}, TypeUserTranscript},
		{AssistantMessage{Type: TypeAssistantMessage}, TypeAssistantMessage},
		{SpeakingState{Type: TypeSpeakingState}, TypeSpeakingState},
		{LogEntry{Type: TypeLogEntry}, TypeLogEntry},
		{ErrorEvent{Type: TypeErrorEvent}, TypeErrorEvent},
	}
	for _, tc := range cases {
		got, ok := MessageTypeOf(tc.msg)
		if !ok || got != tc.want {
			t.Errorf("MessageTypeOf(%T) = %q, %v", tc.msg, got, ok)
		}
	}
	if _, ok := MessageTypeOf(42); ok {
		t.Error("expected unknown payloads to report false")
	}
}

func TestSessionStateWireFormat(t *testing.T) {
	raw, err := json.Marshal(SessionState{
		Type:      TypeSessionState,
		SessionID: "s-1",
		Kind:      "voice_turn",
		State:     "active",
		TSMs:      1700000000000,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "session_state" || m["kind"] != "voice_turn" {
		t.Fatalf("unexpected wire payload: %s", raw)
	}
	if _, present := m["reason"]; present {
		t.Fatal("expected empty reason to be omitted")
	}
}
