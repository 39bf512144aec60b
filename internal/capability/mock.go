package capability

import (
	"context"
	"sync"
)

// MockDeviceBridge simulates the device chooser and connect capability for
// local development and tests.
type MockDeviceBridge struct {
	mu          sync.Mutex
	nextDevice  DeviceDescriptor
	discoverErr error
	connectErr  error
	battery     int
	batteryOK   bool
	hold        chan struct{}
	handles     []*MockDeviceHandle
}

func NewMockDeviceBridge() *MockDeviceBridge {
	return &MockDeviceBridge{
		nextDevice: DeviceDescriptor{ID: "mock-device-1", Name: "Mock Car Stereo"},
		battery:    87,
		batteryOK:  true,
	}
}

// SetNextDevice controls what the simulated chooser returns.
func (b *MockDeviceBridge) SetNextDevice(desc DeviceDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextDevice = desc
}

func (b *MockDeviceBridge) FailDiscover(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discoverErr = err
}

func (b *MockDeviceBridge) FailConnect(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectErr = err
}

func (b *MockDeviceBridge) SetBattery(level int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.battery = level
	b.batteryOK = ok
}

// HoldConnects makes Connect block until the returned release function is
// called, so tests can observe the requesting state.
func (b *MockDeviceBridge) HoldConnects() (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hold := make(chan struct{})
	b.hold = hold
	var once sync.Once
	return func() { once.Do(func() { close(hold) }) }
}

func (b *MockDeviceBridge) Discover(ctx context.Context) (DeviceDescriptor, error) {
	b.mu.Lock()
	err := b.discoverErr
	desc := b.nextDevice
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return DeviceDescriptor{}, ctx.Err()
	default:
	}
	if err != nil {
		return DeviceDescriptor{}, err
	}
	return desc, nil
}

func (b *MockDeviceBridge) Connect(ctx context.Context, desc DeviceDescriptor) (DeviceHandle, error) {
	b.mu.Lock()
	err := b.connectErr
	hold := b.hold
	battery, batteryOK := b.battery, b.batteryOK
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if err != nil {
		return nil, err
	}

	h := &MockDeviceHandle{
		desc:         desc,
		battery:      battery,
		batteryOK:    batteryOK,
		disconnected: make(chan struct{}),
	}
	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	return h, nil
}

// LastHandle returns the most recently connected handle, or nil.
func (b *MockDeviceBridge) LastHandle() *MockDeviceHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

// MockDeviceHandle is a live mock connection. DropConnection simulates the
// device disconnecting on its own.
type MockDeviceHandle struct {
	desc         DeviceDescriptor
	battery      int
	batteryOK    bool
	dropOnce     sync.Once
	disconnected chan struct{}
}

func (h *MockDeviceHandle) Descriptor() DeviceDescriptor { return h.desc }

func (h *MockDeviceHandle) BatteryLevel() (int, bool) { return h.battery, h.batteryOK }

func (h *MockDeviceHandle) Disconnected() <-chan struct{} { return h.disconnected }

func (h *MockDeviceHandle) Close() error {
	h.dropOnce.Do(func() { close(h.disconnected) })
	return nil
}

// DropConnection simulates a device-initiated disconnect. Safe to call more
// than once; duplicate signals collapse.
func (h *MockDeviceHandle) DropConnection() {
	h.dropOnce.Do(func() { close(h.disconnected) })
}

// MockRecognizer yields a scripted transcript per capture.
type MockRecognizer struct {
	mu         sync.Mutex
	transcript string
	err        error
	hold       chan struct{}
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{transcript: "simulated voice input"}
}

func (r *MockRecognizer) SetTranscript(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = text
}

func (r *MockRecognizer) FailCapture(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// HoldCaptures makes Capture block until released, so tests can cancel a
// suspended capture.
func (r *MockRecognizer) HoldCaptures() (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold := make(chan struct{})
	r.hold = hold
	var once sync.Once
	return func() { once.Do(func() { close(hold) }) }
}

func (r *MockRecognizer) Capture(ctx context.Context) (string, error) {
	r.mu.Lock()
	transcript := r.transcript
	err := r.err
	hold := r.hold
	r.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", NewFailure(CodeAborted, "speech capture cancelled")
		}
	}
	select {
	case <-ctx.Done():
		return "", NewFailure(CodeAborted, "speech capture cancelled")
	default:
	}
	if err != nil {
		return "", err
	}
	if transcript == "" {
		return "", NewFailure(CodeNoSpeech, "no speech was detected")
	}
	return transcript, nil
}

// MockSpeaker records utterances and reports synthetic playback events.
type MockSpeaker struct {
	mu         sync.Mutex
	utterances []string
	failWith   *Failure
	manual     bool
	current    chan SpeechEvent
}

func NewMockSpeaker() *MockSpeaker { return &MockSpeaker{} }

func (s *MockSpeaker) FailPlayback(f *Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = f
}

// HoldPlayback keeps utterances in the started state until FinishPlayback is
// called, so tests can observe the speaking indicator.
func (s *MockSpeaker) HoldPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = true
}

// FinishPlayback completes the in-flight utterance, if any.
func (s *MockSpeaker) FinishPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current <- SpeechEvent{Type: SpeechEnded}
	close(s.current)
	s.current = nil
}

func (s *MockSpeaker) Speak(ctx context.Context, text string) (<-chan SpeechEvent, error) {
	s.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterances = append(s.utterances, text)

	ch := make(chan SpeechEvent, 3)
	if s.failWith != nil {
		ch <- SpeechEvent{Type: SpeechErrored, Code: s.failWith.Code, Detail: s.failWith.Detail}
		close(ch)
		return ch, nil
	}

	ch <- SpeechEvent{Type: SpeechStarted}
	if s.manual {
		s.current = ch
		return ch, nil
	}
	ch <- SpeechEvent{Type: SpeechEnded}
	close(ch)
	return ch, nil
}

func (s *MockSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current <- SpeechEvent{Type: SpeechEnded}
	close(s.current)
	s.current = nil
}

// Utterances returns everything spoken so far.
func (s *MockSpeaker) Utterances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.utterances))
	copy(out, s.utterances)
	return out
}
