package observability

import (
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetActive("connection", 1)
	m.SessionEvent("voice_turn", "started")
	m.Failure("network_error")
	m.ObserveVoiceTurnLatency(250 * time.Millisecond)
}

func TestNewMetricsRegistersInstruments(t *testing.T) {
	m := NewMetrics("companiond_test")
	if m.ActiveSessions == nil || m.SessionEvents == nil ||
		m.CapabilityFailures == nil || m.VoiceTurnLatency == nil {
		t.Fatal("expected all instruments to be constructed")
	}
	m.SetActive("connection", 1)
	m.SessionEvent("connection", "ended")
	m.Failure("aborted")
	m.ObserveVoiceTurnLatency(time.Second)
}