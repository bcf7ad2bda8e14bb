package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tutorvox/tutorvox/pkg/core"
)

const defaultGeminiHost = "generativelanguage.googleapis.com"

const bidiGenerateContentPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Backend identifies the remote model endpoint for a session.
type Backend struct {
	// Host overrides the Gemini API host. Empty means the public endpoint.
	Host string
	// URL overrides the full websocket URL, bypassing Host and APIKey.
	// Used by tests and proxies.
	URL    string
	APIKey string
	// Model is the fully qualified model name, e.g. "models/gemini-2.0-flash-exp".
	Model             string
	SystemInstruction string
	// SupportsTextContent reports whether the backend accepts editor text as
	// a structured text turn. When false the multiplexer falls back to
	// sending text as a media chunk.
	SupportsTextContent bool
}

func (b Backend) websocketURL() string {
	if b.URL != "" {
		return b.URL
	}
	host := b.Host
	if host == "" {
		host = defaultGeminiHost
	}
	return fmt.Sprintf("wss://%s%s?key=%s", host, bidiGenerateContentPath, url.QueryEscape(b.APIKey))
}

// TransportConfig tunes the websocket layer.
type TransportConfig struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// SendQueue bounds buffered outbound messages. Overflow drops the
	// newest message rather than blocking the caller.
	SendQueue int
}

// DefaultTransportConfig returns production defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendQueue:    64,
	}
}

// TransportCallbacks are invoked from the transport's read goroutine.
type TransportCallbacks struct {
	// OnOpen fires once per connection, after the server acknowledges setup.
	OnOpen func()
	// OnEvent receives decoded server events in arrival order.
	OnEvent func(ev InboundEvent)
	// OnClose fires when the connection drops for any reason other than a
	// client-initiated Disconnect.
	OnClose func(err error)
}

// Transport owns one websocket connection to the Gemini Live API. It sends
// the setup message on connect, demultiplexes inbound frames into events,
// and drops outbound media silently while the connection is not open.
//
// A Transport can be reconnected after it closes; mute/unmute however reuses
// the same open connection, so Connect is only called again after a drop.
type Transport struct {
	backend   Backend
	cfg       TransportConfig
	callbacks TransportCallbacks
	logger    *slog.Logger

	mu       sync.Mutex
	state    ConnState
	conn     *websocket.Conn
	outbound chan []byte
	done     chan struct{}
	// gen invalidates read/write loops of previous connections.
	gen int

	dropped atomic.Uint64
}

// NewTransport creates a transport for the given backend. Callbacks may have
// nil fields.
func NewTransport(backend Backend, cfg TransportConfig, callbacks TransportCallbacks, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultTransportConfig().DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultTransportConfig().WriteTimeout
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultTransportConfig().SendQueue
	}
	return &Transport{
		backend:   backend,
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger,
		state:     ConnClosed,
	}
}

// Connect dials the backend and sends the setup message. The transport stays
// in ConnConnecting until the server acknowledges setup, at which point it
// becomes ConnOpen and OnOpen fires from the read goroutine.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state != ConnClosed {
		t.mu.Unlock()
		return core.NewStateError(fmt.Sprintf("connect from %s connection", t.state))
	}
	t.state = ConnConnecting
	t.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.backend.websocketURL(), nil)
	if err != nil {
		t.mu.Lock()
		t.state = ConnClosed
		t.mu.Unlock()
		return core.NewTransportError("websocket dial failed", err)
	}

	setup, err := encodeSetup(t.backend)
	if err != nil {
		conn.Close()
		t.mu.Lock()
		t.state = ConnClosed
		t.mu.Unlock()
		return core.NewTransportError("setup encode failed", err)
	}
	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, setup); err != nil {
		conn.Close()
		t.mu.Lock()
		t.state = ConnClosed
		t.mu.Unlock()
		return core.NewTransportError("setup send failed", err)
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.conn = conn
	t.outbound = make(chan []byte, t.cfg.SendQueue)
	t.done = make(chan struct{})
	outbound, done := t.outbound, t.done
	t.mu.Unlock()

	go t.writeLoop(conn, outbound, done)
	go t.readLoop(conn, gen)

	t.logger.Debug("live transport connected", "model", t.backend.Model)
	return nil
}

// Disconnect closes the connection and discards queued outbound messages.
// It is safe to call from any state, repeatedly.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if t.state == ConnClosed && t.conn == nil {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.state = ConnClosed
	conn := t.conn
	done := t.done
	t.conn = nil
	t.outbound = nil
	t.done = nil
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		deadline := time.Now().Add(2 * time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	t.logger.Debug("live transport disconnected")
}

// State returns the current connection state.
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SupportsTextContent reports the backend's text turn capability.
func (t *Transport) SupportsTextContent() bool {
	return t.backend.SupportsTextContent
}

// SendMediaChunk queues one media chunk (PCM audio or an image snapshot).
// While the connection is not open, or when the queue is full, the chunk is
// dropped and counted; sending never blocks and never fails the caller.
func (t *Transport) SendMediaChunk(data []byte, mimeType string) {
	msg, err := encodeMediaChunk(data, mimeType)
	if err != nil {
		t.dropped.Add(1)
		t.logger.Warn("media chunk encode failed", "error", err)
		return
	}
	t.enqueue(msg, mimeType)
}

// SendTextContent queues one complete user text turn.
func (t *Transport) SendTextContent(text string) {
	msg, err := encodeTextTurn(text)
	if err != nil {
		t.dropped.Add(1)
		t.logger.Warn("text turn encode failed", "error", err)
		return
	}
	t.enqueue(msg, "text_turn")
}

// DroppedMessages returns how many outbound messages were discarded.
func (t *Transport) DroppedMessages() uint64 {
	return t.dropped.Load()
}

func (t *Transport) enqueue(msg []byte, kind string) {
	t.mu.Lock()
	state, outbound := t.state, t.outbound
	t.mu.Unlock()

	if state != ConnOpen || outbound == nil {
		t.dropped.Add(1)
		t.logger.Debug("dropping outbound message, connection not open", "kind", kind, "state", state.String())
		return
	}
	select {
	case outbound <- msg:
	default:
		t.dropped.Add(1)
		t.logger.Warn("outbound queue full, dropping message", "kind", kind)
	}
}

func (t *Transport) writeLoop(conn *websocket.Conn, outbound <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-outbound:
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (t *Transport) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(gen, err)
			return
		}

		events, err := decodeServerFrame(data)
		if err != nil {
			// Protocol errors skip the offending message only.
			t.logger.Warn("server frame rejected", "error", err)
			continue
		}
		for _, ev := range events {
			if _, ok := ev.(SetupAckEvent); ok {
				t.markOpen(gen)
				continue
			}
			if t.callbacks.OnEvent != nil {
				t.callbacks.OnEvent(ev)
			}
		}
	}
}

func (t *Transport) markOpen(gen int) {
	t.mu.Lock()
	if gen != t.gen || t.state != ConnConnecting {
		t.mu.Unlock()
		return
	}
	t.state = ConnOpen
	t.mu.Unlock()

	t.logger.Debug("live setup acknowledged")
	if t.callbacks.OnOpen != nil {
		t.callbacks.OnOpen()
	}
}

func (t *Transport) handleClose(gen int, err error) {
	t.mu.Lock()
	if gen != t.gen {
		// A Disconnect already superseded this connection.
		t.mu.Unlock()
		return
	}
	t.gen++
	t.state = ConnClosed
	conn := t.conn
	done := t.done
	t.conn = nil
	t.outbound = nil
	t.done = nil
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}

	t.logger.Debug("live transport closed by peer", "error", err)
	if t.callbacks.OnClose != nil {
		t.callbacks.OnClose(core.NewTransportError("connection closed", err))
	}
}
