package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadsense/companiond/internal/brain"
	"github.com/roadsense/companiond/internal/capability"
	"github.com/roadsense/companiond/internal/devices"
	"github.com/roadsense/companiond/internal/eventlog"
	"github.com/roadsense/companiond/internal/observability"
	"github.com/roadsense/companiond/internal/protocol"
	"github.com/roadsense/companiond/internal/transcript"
)

// DefaultSystemPrompt shapes assistant replies for in-car playback.
const DefaultSystemPrompt = "You are a helpful, concise voice assistant. " +
	"Avoid markdown formatting. Keep responses conversational and brief."

// live pairs a session with the resources only the controller may touch: the
// cancel func for its suspended capability call and, for connections, the
// device handle. The generation number keeps late capability callbacks from
// resurrecting a session that already reached a terminal state.
type live struct {
	sess   *Session
	gen    uint64
	cancel context.CancelFunc
	handle capability.DeviceHandle
}

// Controller manages at most one live connection and one live voice turn,
// driving each through requesting, active and terminal states, and recording
// every transition in the event log.
type Controller struct {
	bridge      capability.DeviceBridge
	recognizer  capability.Recognizer
	speaker     capability.Speaker
	brain       brain.Client
	devices     devices.Store
	transcripts transcript.Store
	eventLog    *eventlog.Log
	metrics     *observability.Metrics

	systemPrompt string
	guard        *Guard

	mu       sync.Mutex
	genSeq   uint64
	conn     *live
	voice    *live
	speaking bool

	subMu  sync.Mutex
	subSeq uint64
	subs   map[uint64]chan any
}

func NewController(
	bridge capability.DeviceBridge,
	recognizer capability.Recognizer,
	speaker capability.Speaker,
	brainClient brain.Client,
	deviceStore devices.Store,
	transcriptStore transcript.Store,
	eventLog *eventlog.Log,
	metrics *observability.Metrics,
	systemPrompt string,
) *Controller {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Controller{
		bridge:       bridge,
		recognizer:   recognizer,
		speaker:      speaker,
		brain:        brainClient,
		devices:      deviceStore,
		transcripts:  transcriptStore,
		eventLog:     eventLog,
		metrics:      metrics,
		systemPrompt: systemPrompt,
		guard:        NewGuard(),
		subs:         make(map[uint64]chan any),
	}
}

func errAlreadyInProgress(kind Kind) *capability.Failure {
	return capability.NewFailure(capability.CodeAlreadyInProgress,
		fmt.Sprintf("a %s request is already in progress", strings.ReplaceAll(string(kind), "_", " ")))
}

// Scan opens the device chooser and returns the user-selected descriptor. It
// holds the connection slot while the chooser is open so a second scan or
// connect cannot start underneath it.
func (c *Controller) Scan(ctx context.Context) (capability.DeviceDescriptor, error) {
	if !c.guard.TryAcquire(KindConnection) {
		return capability.DeviceDescriptor{}, errAlreadyInProgress(KindConnection)
	}
	defer c.guard.Release(KindConnection)

	c.logf("Scanning for devices...")
	desc, err := c.bridge.Discover(ctx)
	if err != nil {
		f := capability.Normalize(err)
		c.metrics.Failure(string(f.Code))
		c.logf("Scan error: %s", f.Message())
		return capability.DeviceDescriptor{}, f
	}

	name := desc.Name
	if name == "" {
		name = "Unnamed Device"
	}
	c.logf("Selected: %s (%s)", name, desc.ID)
	return desc, nil
}

// RequestConnection opens a connection session for the described device. It
// blocks until the session reaches active or failed; external termination and
// cancellation arrive asynchronously afterwards.
func (c *Controller) RequestConnection(ctx context.Context, desc capability.DeviceDescriptor) (*Session, error) {
	if desc.ID == "" && desc.Name == "" {
		return nil, capability.NewFailure(capability.CodeAborted, "missing device descriptor")
	}
	if !c.guard.TryAcquire(KindConnection) {
		return nil, errAlreadyInProgress(KindConnection)
	}

	connCtx, cancel := context.WithCancel(ctx)
	lv := c.beginSession(KindConnection, cancel)
	lv.sess.Device = &capability.DeviceDescriptor{ID: desc.ID, Name: desc.Name}
	c.mu.Lock()
	c.conn = lv
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.metrics.SessionEvent(string(KindConnection), "requested")
	c.publishState(snap)
	c.logf("Connecting to %s...", displayName(desc))

	handle, err := c.bridge.Connect(connCtx, desc)
	if err != nil {
		return c.failConnection(lv.gen, capability.Normalize(err))
	}
	return c.activateConnection(lv.gen, handle)
}

// CancelConnection is the user-initiated disconnect. Cancelling a suspended
// connect is best-effort; the slot is released once the request resolves.
func (c *Controller) CancelConnection() {
	c.mu.Lock()
	lv := c.conn
	if lv == nil || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return
	}
	if lv.sess.State == StateRequesting {
		cancel := lv.cancel
		c.mu.Unlock()
		cancel()
		return
	}
	gen := lv.gen
	c.mu.Unlock()
	c.endConnection(gen, "Disconnected.")
}

// ConnectionSession returns a snapshot of the current connection session, or
// nil when idle.
func (c *Controller) ConnectionSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(getSess(c.conn))
}

func (c *Controller) failConnection(gen uint64, f *capability.Failure) (*Session, error) {
	c.mu.Lock()
	lv := c.conn
	if lv == nil || lv.gen != gen || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return nil, f
	}
	lv.sess.State = StateFailed
	lv.sess.EndedAt = time.Now().UTC()
	lv.sess.ErrorCode = f.Code
	lv.sess.ErrorDetail = f.Message()
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.guard.Release(KindConnection)
	c.metrics.SessionEvent(string(KindConnection), "failed")
	c.metrics.Failure(string(f.Code))
	c.logf("Connect error: %s", f.Message())
	c.publishState(snap)
	c.publish(protocol.ErrorEvent{
		Type: protocol.TypeErrorEvent, SessionID: snap.ID,
		Code: string(f.Code), Detail: f.Message(), Retryable: f.Retryable,
	})
	return snap, f
}

func (c *Controller) activateConnection(gen uint64, handle capability.DeviceHandle) (*Session, error) {
	c.mu.Lock()
	lv := c.conn
	if lv == nil || lv.gen != gen || lv.sess.State != StateRequesting {
		c.mu.Unlock()
		// The session was cancelled or disposed while the connect resolved;
		// release the now-orphaned link.
		_ = handle.Close()
		return nil, capability.NewFailure(capability.CodeUserCancelled, "the request was cancelled")
	}
	lv.handle = handle
	lv.sess.State = StateActive
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.metrics.SetActive(string(KindConnection), 1)
	c.metrics.SessionEvent(string(KindConnection), "connected")

	desc := handle.Descriptor()
	c.logf("Connected to %s", displayName(desc))
	if level, ok := handle.BatteryLevel(); ok {
		c.logf("Battery level: %d%%", level)
	}

	dev := devices.RememberedDevice{ID: desc.ID, Name: displayName(desc)}
	if err := c.devices.Upsert(context.Background(), dev); err != nil {
		log.Printf("remembered device upsert failed: %v", err)
	}

	go c.watchDisconnect(gen, handle)
	c.publishState(snap)
	return snap, nil
}

func (c *Controller) watchDisconnect(gen uint64, handle capability.DeviceHandle) {
	<-handle.Disconnected()
	c.endConnection(gen, "Device disconnected.")
}

// endConnection performs the terminal transition for a connection session.
// Duplicate signals collapse: a session already past active is left alone.
func (c *Controller) endConnection(gen uint64, message string) {
	c.mu.Lock()
	lv := c.conn
	if lv == nil || lv.gen != gen || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return
	}
	lv.sess.State = StateEnded
	lv.sess.EndedAt = time.Now().UTC()
	handle := lv.handle
	lv.handle = nil
	snap := clone(lv.sess)
	c.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
	c.guard.Release(KindConnection)
	c.metrics.SetActive(string(KindConnection), 0)
	c.metrics.SessionEvent(string(KindConnection), "ended")
	c.logf("%s", message)
	c.publishState(snap)
}

// RequestVoiceTurn runs one assistant turn for the given utterance text. It
// blocks until the reply is available (active) or the turn fails; playback
// completion ends the session asynchronously.
func (c *Controller) RequestVoiceTurn(ctx context.Context, text string) (*Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, capability.NewFailure(capability.CodeAborted, "empty utterance")
	}
	if !c.guard.TryAcquire(KindVoiceTurn) {
		return nil, errAlreadyInProgress(KindVoiceTurn)
	}

	turnCtx, cancel := context.WithCancel(ctx)
	lv := c.beginSession(KindVoiceTurn, cancel)
	c.mu.Lock()
	c.voice = lv
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.metrics.SessionEvent(string(KindVoiceTurn), "requested")
	c.publishState(snap)
	return c.runVoiceTurn(turnCtx, lv, text)
}

// Listen captures one utterance from the recognizer and feeds it into a voice
// turn. Starting capture pre-empts any in-flight playback, matching the
// stop-before-restart rule for the shared audio path.
func (c *Controller) Listen(ctx context.Context) (*Session, error) {
	if !c.guard.TryAcquire(KindVoiceTurn) {
		return nil, errAlreadyInProgress(KindVoiceTurn)
	}

	turnCtx, cancel := context.WithCancel(ctx)
	lv := c.beginSession(KindVoiceTurn, cancel)
	c.mu.Lock()
	c.voice = lv
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.metrics.SessionEvent(string(KindVoiceTurn), "requested")
	c.publishState(snap)

	c.speaker.Stop()
	c.setSpeaking(false)
	c.logf("Listening...")

	text, err := c.recognizer.Capture(turnCtx)
	if err != nil {
		// Capture failures (no speech, mic toggled off) do not produce an
		// assistant message; only inference failures are spoken back.
		return c.failVoice(lv.gen, capability.Normalize(err), false)
	}
	return c.runVoiceTurn(turnCtx, lv, text)
}

// CancelVoiceTurn is the user-initiated cancel: mic toggle off during
// capture, or stop while the reply is being spoken.
func (c *Controller) CancelVoiceTurn() {
	c.mu.Lock()
	lv := c.voice
	if lv == nil || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return
	}
	if lv.sess.State == StateRequesting {
		cancel := lv.cancel
		c.mu.Unlock()
		cancel()
		return
	}
	c.mu.Unlock()
	// Active means the reply is being spoken; stopping playback delivers the
	// terminal event through the usual speech event path.
	c.speaker.Stop()
}

// StopSpeaking pre-empts any in-flight utterance, including spoken error
// replies that outlive their session.
func (c *Controller) StopSpeaking() {
	c.speaker.Stop()
}

// VoiceSession returns a snapshot of the current voice turn, or nil when
// idle.
func (c *Controller) VoiceSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(getSess(c.voice))
}

// Speaking reports the playback indicator consumed by the UI.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *Controller) runVoiceTurn(ctx context.Context, lv *live, text string) (*Session, error) {
	start := time.Now()

	userTurn := transcript.Turn{Role: brain.RoleUser, Content: text}
	if err := c.transcripts.Append(ctx, userTurn); err != nil {
		log.Printf("transcript append failed: %v", err)
	}
	c.publish(protocol.UserTranscript{
		Type: protocol.TypeUserTranscript, SessionID: lv.sess.ID,
		Text: text, TSMs: time.Now().UnixMilli(),
	})

	history, err := c.transcripts.History(ctx)
	if err != nil {
		log.Printf("transcript history failed: %v", err)
		history = []transcript.Turn{userTurn}
	}

	// The full conversation goes out every turn; no truncation or windowing.
	messages := make([]brain.Message, 0, len(history)+1)
	messages = append(messages, brain.Message{Role: brain.RoleSystem, Content: c.systemPrompt})
	for _, t := range history {
		messages = append(messages, brain.Message{Role: t.Role, Content: t.Content})
	}

	reply, err := c.brain.Complete(ctx, messages)
	if err != nil {
		return c.failVoice(lv.gen, capability.Normalize(err), true)
	}
	c.metrics.ObserveVoiceTurnLatency(time.Since(start))
	return c.activateVoice(lv.gen, reply)
}

func (c *Controller) activateVoice(gen uint64, reply string) (*Session, error) {
	c.mu.Lock()
	lv := c.voice
	if lv == nil || lv.gen != gen || lv.sess.State != StateRequesting {
		c.mu.Unlock()
		return nil, capability.NewFailure(capability.CodeUserCancelled, "the request was cancelled")
	}
	lv.sess.State = StateActive
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.metrics.SetActive(string(KindVoiceTurn), 1)
	c.metrics.SessionEvent(string(KindVoiceTurn), "responded")

	if err := c.transcripts.Append(context.Background(), transcript.Turn{
		Role: brain.RoleAssistant, Content: reply,
	}); err != nil {
		log.Printf("transcript append failed: %v", err)
	}
	c.logf("Assistant response received")
	c.publish(protocol.AssistantMessage{
		Type: protocol.TypeAssistantMessage, SessionID: snap.ID,
		Text: reply, TSMs: time.Now().UnixMilli(),
	})
	c.publishState(snap)

	spoken := capability.SpokenText(reply)
	if spoken == "" {
		c.endVoice(gen)
		return c.VoiceSession(), nil
	}
	c.speakUtterance(spoken, gen, true)
	return snap, nil
}

func (c *Controller) failVoice(gen uint64, f *capability.Failure, speakError bool) (*Session, error) {
	c.mu.Lock()
	lv := c.voice
	if lv == nil || lv.gen != gen || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return nil, f
	}
	lv.sess.State = StateFailed
	lv.sess.EndedAt = time.Now().UTC()
	lv.sess.ErrorCode = f.Code
	lv.sess.ErrorDetail = f.Message()
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.guard.Release(KindVoiceTurn)
	c.metrics.SessionEvent(string(KindVoiceTurn), "failed")
	c.metrics.Failure(string(f.Code))
	c.logf("Voice turn error: %s", f.Message())

	if speakError {
		// Inference failures surface as a normal conversational message and
		// are spoken, never as a silent failure.
		errText := "Error: " + f.Message()
		if err := c.transcripts.Append(context.Background(), transcript.Turn{
			Role: brain.RoleAssistant, Content: errText,
		}); err != nil {
			log.Printf("transcript append failed: %v", err)
		}
		c.publish(protocol.AssistantMessage{
			Type: protocol.TypeAssistantMessage, SessionID: snap.ID,
			Text: errText, IsError: true, TSMs: time.Now().UnixMilli(),
		})
		c.speakUtterance("I encountered an error: "+f.Message(), gen, false)
	}

	c.publishState(snap)
	c.publish(protocol.ErrorEvent{
		Type: protocol.TypeErrorEvent, SessionID: snap.ID,
		Code: string(f.Code), Detail: f.Message(), Retryable: f.Retryable,
	})
	return snap, f
}

// endVoice performs the terminal transition for a voice turn; duplicate
// playback-end signals collapse.
func (c *Controller) endVoice(gen uint64) {
	c.mu.Lock()
	lv := c.voice
	if lv == nil || lv.gen != gen || lv.sess.State.Terminal() {
		c.mu.Unlock()
		return
	}
	lv.sess.State = StateEnded
	lv.sess.EndedAt = time.Now().UTC()
	snap := clone(lv.sess)
	c.mu.Unlock()

	c.guard.Release(KindVoiceTurn)
	c.metrics.SetActive(string(KindVoiceTurn), 0)
	c.metrics.SessionEvent(string(KindVoiceTurn), "ended")
	c.logf("Voice turn ended")
	c.publishState(snap)
}

// speakUtterance starts playback and follows its event stream. When
// endSession is set, the terminal playback event ends the voice session; the
// generation check makes a late event against a newer session a no-op.
func (c *Controller) speakUtterance(text string, gen uint64, endSession bool) {
	events, err := c.speaker.Speak(context.Background(), text)
	if err != nil {
		log.Printf("speech synthesis failed: %v", err)
		if endSession {
			c.endVoice(gen)
		}
		return
	}
	go func() {
		for ev := range events {
			switch ev.Type {
			case capability.SpeechStarted:
				c.setSpeaking(true)
			case capability.SpeechEnded, capability.SpeechErrored:
				c.setSpeaking(false)
			}
		}
		if endSession {
			c.endVoice(gen)
		}
	}()
}

// Dispose resets the controller to idle: both kinds are torn down, handles
// released, guards freed. It never fails, even on handles that are already
// invalid.
func (c *Controller) Dispose() {
	c.mu.Lock()
	conn, voice := c.conn, c.voice
	c.conn, c.voice = nil, nil
	c.mu.Unlock()

	for _, lv := range []*live{conn, voice} {
		if lv == nil {
			continue
		}
		if lv.cancel != nil {
			lv.cancel()
		}
		if lv.handle != nil {
			_ = lv.handle.Close()
		}
	}
	c.speaker.Stop()
	c.setSpeaking(false)
	c.guard.Release(KindConnection)
	c.guard.Release(KindVoiceTurn)
	c.metrics.SetActive(string(KindConnection), 0)
	c.metrics.SetActive(string(KindVoiceTurn), 0)
}

// RememberedDevices returns the durable device list, most recent first.
func (c *Controller) RememberedDevices(ctx context.Context) ([]devices.RememberedDevice, error) {
	return c.devices.Load(ctx)
}

// ForgetDevice drops a remembered device; no-op when absent.
func (c *Controller) ForgetDevice(ctx context.Context, id string) error {
	return c.devices.Remove(ctx, id)
}

// History returns the full conversation so far.
func (c *Controller) History(ctx context.Context) ([]transcript.Turn, error) {
	return c.transcripts.History(ctx)
}

// Log returns the diagnostics log, newest first.
func (c *Controller) Log() []eventlog.Entry {
	return c.eventLog.Snapshot()
}

func (c *Controller) ClearLog() {
	c.eventLog.Clear()
}

// Subscribe registers an event listener. Events are dropped rather than
// blocking when the subscriber falls behind. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan any, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subSeq++
	id := c.subSeq
	ch := make(chan any, 64)
	c.subs[id] = ch
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) beginSession(kind Kind, cancel context.CancelFunc) *live {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genSeq++
	return &live{
		sess: &Session{
			ID:        uuid.NewString(),
			Kind:      kind,
			State:     StateRequesting,
			StartedAt: time.Now().UTC(),
		},
		gen:    c.genSeq,
		cancel: cancel,
	}
}

func (c *Controller) setSpeaking(speaking bool) {
	c.mu.Lock()
	changed := c.speaking != speaking
	c.speaking = speaking
	c.mu.Unlock()
	if changed {
		c.publish(protocol.SpeakingState{
			Type: protocol.TypeSpeakingState, Speaking: speaking, TSMs: time.Now().UnixMilli(),
		})
	}
}

func (c *Controller) publish(v any) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- v:
		default:
			// Slow subscriber; drop rather than stall session transitions.
		}
	}
}

func (c *Controller) publishState(s *Session) {
	if s == nil {
		return
	}
	c.publish(protocol.SessionState{
		Type:      protocol.TypeSessionState,
		SessionID: s.ID,
		Kind:      string(s.Kind),
		State:     string(s.State),
		Reason:    string(s.ErrorCode),
		TSMs:      time.Now().UnixMilli(),
	})
}

func (c *Controller) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.eventLog.Append(msg)
	c.publish(protocol.LogEntry{
		Type: protocol.TypeLogEntry, Message: msg, TSMs: time.Now().UnixMilli(),
	})
}

func getSess(lv *live) *Session {
	if lv == nil {
		return nil
	}
	return lv.sess
}

func displayName(desc capability.DeviceDescriptor) string {
	if desc.Name != "" {
		return desc.Name
	}
	return "Unnamed Device"
}
