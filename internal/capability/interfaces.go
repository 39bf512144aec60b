package capability

import "context"

// DeviceDescriptor identifies a discoverable device as presented by the
// chooser: a stable external ID and a display name.
type DeviceDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceHandle is the live connection to one device. It is exclusively owned
// by the session that opened it and must not be used after Close.
type DeviceHandle interface {
	Descriptor() DeviceDescriptor

	// BatteryLevel reports the enrichment read performed at connect time.
	// ok is false when the device does not expose a battery service; that is
	// never a connect failure.
	BatteryLevel() (level int, ok bool)

	// Disconnected is closed when the device drops the link on its own.
	Disconnected() <-chan struct{}

	// Close tears down the link. Safe to call multiple times and on handles
	// that are already disconnected.
	Close() error
}

// DeviceBridge exposes the device chooser and GATT-style connect capability.
type DeviceBridge interface {
	// Discover opens the modal chooser and blocks until the user picks a
	// device or dismisses it. The chooser is user-paced, so no timeout is
	// imposed here; cancel via ctx is best-effort.
	Discover(ctx context.Context) (DeviceDescriptor, error)

	// Connect establishes a link to the described device.
	Connect(ctx context.Context, desc DeviceDescriptor) (DeviceHandle, error)
}

// Recognizer captures speech and yields at most one finalized transcript per
// invocation. Interim results are not surfaced.
type Recognizer interface {
	// Capture blocks until a final transcript is available, the recognizer
	// self-terminates, or ctx is cancelled. Ending without a transcript
	// yields a no_speech or aborted failure.
	Capture(ctx context.Context) (string, error)
}

type SpeechEventType string

const (
	SpeechStarted SpeechEventType = "started"
	SpeechEnded   SpeechEventType = "ended"
	SpeechErrored SpeechEventType = "errored"
)

// SpeechEvent reports utterance playback progress.
type SpeechEvent struct {
	Type   SpeechEventType
	Code   Code
	Detail string
}

// Speaker synthesizes speech with cancel-then-speak semantics: starting a new
// utterance always pre-empts an in-flight one.
type Speaker interface {
	// Speak begins speaking text and returns a channel of playback events for
	// this utterance. The channel is closed after the terminal event (ended
	// or errored).
	Speak(ctx context.Context, text string) (<-chan SpeechEvent, error)

	// Stop cancels any in-flight utterance. No-op when idle.
	Stop()
}
