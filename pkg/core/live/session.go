package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tutorvox/tutorvox/pkg/core"
)

// sessionTransport is the slice of Transport the controller drives. Tests
// substitute a fake through the newTransport factory.
type sessionTransport interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() ConnState
	SupportsTextContent() bool
	SendMediaChunk(data []byte, mimeType string)
	SendTextContent(text string)
}

// ControllerConfig bundles everything a session needs.
type ControllerConfig struct {
	Backend     Backend
	Transport   TransportConfig
	Capture     CaptureConfig
	Content     ContentConfig
	Constraints DeviceConstraints
	// OutputAudio is the playback format, normally 24 kHz mono.
	OutputAudio AudioConfig
}

// DefaultControllerConfig returns production defaults for a backend.
func DefaultControllerConfig(backend Backend) ControllerConfig {
	return ControllerConfig{
		Backend:     backend,
		Transport:   DefaultTransportConfig(),
		Capture:     DefaultCaptureConfig(),
		Content:     DefaultContentConfig(),
		Constraints: DefaultDeviceConstraints(),
		OutputAudio: DefaultOutputAudioConfig(),
	}
}

// Controller is the session state machine:
//
//	Idle → Connecting → Ready → Listening ⇄ Muted → Disconnected
//
// One transport and one playback pipeline live for the whole session; the
// capture pipeline and content multiplexer exist only while listening. Mute
// keeps the connection open so the model's conversation context survives.
type Controller struct {
	cfg       ControllerConfig
	callbacks Callbacks
	device    Device
	sink      Sink
	provider  SnapshotProvider
	logger    *slog.Logger
	clock     Clock

	newTransport func(cb TransportCallbacks) sessionTransport

	// opMu serializes the public lifecycle operations.
	opMu sync.Mutex

	mu        sync.Mutex
	state     SessionState
	transport sessionTransport
	capture   *CapturePipeline
	playback  *PlaybackPipeline
	content   *ContentMultiplexer

	sessionActive atomic.Bool
}

// NewController wires a session around platform devices and a snapshot
// provider. The provider may be nil for audio-only sessions.
func NewController(cfg ControllerConfig, device Device, sink Sink, provider SnapshotProvider, callbacks Callbacks, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:       cfg,
		callbacks: callbacks,
		device:    device,
		sink:      sink,
		provider:  provider,
		logger:    logger,
		state:     StateIdle,
	}
	c.newTransport = func(cb TransportCallbacks) sessionTransport {
		return NewTransport(cfg.Backend, cfg.Transport, cb, logger)
	}
	return c
}

// StartSession connects to the backend and moves to Connecting, then Ready
// once the server acknowledges setup. Valid from Idle or Disconnected.
func (c *Controller) StartSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateIdle && c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return core.NewStateError(fmt.Sprintf("start session from %s", state))
	}
	prev := c.state
	c.mu.Unlock()

	playback := NewPlaybackPipeline(c.sink, c.cfg.OutputAudio, c.clock, c.logger)
	transport := c.newTransport(TransportCallbacks{
		OnOpen:  c.handleOpen,
		OnEvent: c.handleEvent,
		OnClose: c.handleTransportClose,
	})

	c.mu.Lock()
	c.playback = playback
	c.transport = transport
	c.mu.Unlock()
	c.sessionActive.Store(true)
	c.setState(StateConnecting)

	if err := transport.Connect(ctx); err != nil {
		playback.Close()
		c.sessionActive.Store(false)
		c.mu.Lock()
		c.playback = nil
		c.transport = nil
		c.mu.Unlock()
		c.setState(prev)
		return err
	}

	c.logger.Info("session started", "model", c.cfg.Backend.Model)
	if c.callbacks.OnSessionStateChange != nil {
		c.callbacks.OnSessionStateChange(true)
	}
	return nil
}

// StartListening acquires the microphone and begins streaming. Valid from
// Ready or Muted. If the connection dropped while muted, it reconnects
// first; otherwise the existing connection is reused as-is.
func (c *Controller) StartListening(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateReady && c.state != StateMuted {
		state := c.state
		c.mu.Unlock()
		return core.NewStateError(fmt.Sprintf("start listening from %s", state))
	}
	transport := c.transport
	playback := c.playback
	c.mu.Unlock()

	if transport.State() == ConnClosed {
		c.logger.Info("reconnecting before listening")
		if err := transport.Connect(ctx); err != nil {
			c.emitError(err)
			return err
		}
	}

	gate := func() bool {
		return c.sessionActive.Load() && transport.State() == ConnOpen && !playback.Speaking()
	}
	forward := func(f AudioFrame) {
		transport.SendMediaChunk(f.PCM, MimePCM)
	}

	capture := NewCapturePipeline(c.device, c.cfg.Capture, c.logger)
	if err := capture.Start(ctx, c.cfg.Constraints, forward, gate); err != nil {
		// Microphone acquisition failed; the session stays where it was.
		c.emitError(err)
		return err
	}

	var content *ContentMultiplexer
	if c.provider != nil {
		content = NewContentMultiplexer(c.cfg.Content, c.logger)
		contentGate := func() bool {
			return c.sessionActive.Load() && capture.Running()
		}
		if err := content.Start(ctx, c.provider, transport, contentGate); err != nil {
			capture.Stop()
			c.emitError(err)
			return err
		}
	}

	c.mu.Lock()
	c.capture = capture
	c.content = content
	c.mu.Unlock()
	c.setState(StateListening)
	return nil
}

// StopListening releases the microphone and pauses snapshots but keeps the
// connection and playback alive. A no-op outside Listening.
func (c *Controller) StopListening() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return nil
	}
	capture := c.capture
	content := c.content
	c.capture = nil
	c.content = nil
	c.mu.Unlock()

	if content != nil {
		content.Stop()
	}
	if capture != nil {
		if err := capture.Stop(); err != nil {
			c.emitError(err)
		}
	}
	c.setState(StateMuted)
	return nil
}

// StopSession tears the whole session down: capture, then content, then
// playback, then transport. Valid from any state; repeat calls are no-ops.
func (c *Controller) StopSession() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state == StateIdle || c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	capture := c.capture
	content := c.content
	playback := c.playback
	transport := c.transport
	c.capture = nil
	c.content = nil
	c.playback = nil
	c.transport = nil
	c.mu.Unlock()

	c.sessionActive.Store(false)
	if capture != nil {
		if err := capture.Stop(); err != nil {
			c.emitError(err)
		}
	}
	if content != nil {
		content.Stop()
	}
	if playback != nil {
		playback.Close()
	}
	if transport != nil {
		transport.Disconnect()
	}

	c.setState(StateDisconnected)
	c.logger.Info("session stopped")
	if c.callbacks.OnSessionStateChange != nil {
		c.callbacks.OnSessionStateChange(false)
	}
	return nil
}

// SendText sends a typed user question as a complete turn.
func (c *Controller) SendText(text string) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil || transport.State() != ConnOpen {
		return core.NewStateError("no open connection for text")
	}
	transport.SendTextContent(text)
	return nil
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ModelSpeaking reports whether model audio is queued or rendering.
func (c *Controller) ModelSpeaking() bool {
	c.mu.Lock()
	playback := c.playback
	c.mu.Unlock()
	return playback != nil && playback.Speaking()
}

// InputLevel returns the microphone meter, 0-100.
func (c *Controller) InputLevel() int {
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return 0
	}
	return capture.InputLevel()
}

// OutputLevel returns the playback meter, 0-100.
func (c *Controller) OutputLevel() int {
	c.mu.Lock()
	playback := c.playback
	c.mu.Unlock()
	if playback == nil {
		return 0
	}
	return playback.OutputLevel()
}

func (c *Controller) setState(s SessionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = s
	c.mu.Unlock()

	c.logger.Debug("session state change", "from", from.String(), "to", s.String())
	if c.callbacks.OnState != nil {
		c.callbacks.OnState(s)
	}
}

func (c *Controller) emitError(err error) {
	c.logger.Warn("session error", "error", err)
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

func (c *Controller) handleOpen() {
	c.mu.Lock()
	connecting := c.state == StateConnecting
	c.mu.Unlock()
	if connecting {
		c.setState(StateReady)
	}
}

func (c *Controller) handleEvent(ev InboundEvent) {
	c.mu.Lock()
	playback := c.playback
	c.mu.Unlock()

	switch ev := ev.(type) {
	case AudioChunkEvent:
		if playback != nil {
			playback.Enqueue(ev.PCM)
		}
	case TranscriptTextEvent:
		if c.callbacks.OnTranscript != nil {
			c.callbacks.OnTranscript(ev.Text)
		}
	case InterruptedEvent:
		if playback != nil {
			playback.Interrupt()
		}
	case TurnCompleteEvent:
		c.logger.Debug("model turn complete")
	}
}

// handleTransportClose runs when the server drops the connection. The
// session stays active and resumable: listening resources are released and
// the next StartListening reconnects.
func (c *Controller) handleTransportClose(err error) {
	if !c.sessionActive.Load() {
		return
	}
	c.emitError(err)

	c.mu.Lock()
	listening := c.state == StateListening
	capture := c.capture
	content := c.content
	if listening {
		c.capture = nil
		c.content = nil
	}
	c.mu.Unlock()

	if !listening {
		return
	}
	if content != nil {
		content.Stop()
	}
	if capture != nil {
		capture.Stop()
	}
	c.setState(StateMuted)
}
