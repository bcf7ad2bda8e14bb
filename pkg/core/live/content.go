package live

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tutorvox/tutorvox/pkg/core"
)

// SnapshotKind says how a work-surface snapshot should travel on the wire.
type SnapshotKind int

const (
	// SnapshotText is editor content, sent as a text turn when the backend
	// supports it and as a text/plain media chunk otherwise.
	SnapshotText SnapshotKind = iota
	// SnapshotImage is an encoded PNG of the canvas.
	SnapshotImage
)

// Snapshot is one capture of the user's work surface. Empty Data means the
// surface had nothing worth sending and the tick is skipped.
type Snapshot struct {
	Kind SnapshotKind
	Data []byte
}

// SnapshotProvider captures the current work surface on demand.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Ticker abstracts the snapshot cadence for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// contentSender is the slice of the transport the multiplexer needs.
type contentSender interface {
	State() ConnState
	SupportsTextContent() bool
	SendMediaChunk(data []byte, mimeType string)
	SendTextContent(text string)
}

// ContentMultiplexer periodically shows the model the user's work surface.
// Ticks are skipped while the gate is closed or the connection is not open;
// a failed or empty snapshot skips its tick without stopping the cadence.
type ContentMultiplexer struct {
	cfg       ContentConfig
	logger    *slog.Logger
	newTicker func(d time.Duration) Ticker

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}

	sends atomic.Uint64
}

// NewContentMultiplexer creates an idle multiplexer.
func NewContentMultiplexer(cfg ContentConfig, logger *slog.Logger) *ContentMultiplexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultContentConfig().Interval
	}
	return &ContentMultiplexer{
		cfg:       cfg,
		logger:    logger,
		newTicker: func(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} },
	}
}

// Start begins the snapshot cadence.
func (m *ContentMultiplexer) Start(ctx context.Context, provider SnapshotProvider, sender contentSender, gate func() bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return core.NewStateError("content multiplexer already running")
	}
	m.running = true
	m.done = make(chan struct{})
	m.stopped = make(chan struct{})
	done, stopped := m.done, m.stopped

	ticker := m.newTicker(m.cfg.Interval)
	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				m.tick(ctx, provider, sender, gate)
			}
		}
	}()
	return nil
}

// Stop halts the cadence. No send occurs after Stop returns. Idempotent.
func (m *ContentMultiplexer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done, stopped := m.done, m.stopped
	m.done = nil
	m.stopped = nil
	m.mu.Unlock()

	close(done)
	<-stopped
}

// Sends returns how many snapshots have gone out.
func (m *ContentMultiplexer) Sends() uint64 {
	return m.sends.Load()
}

func (m *ContentMultiplexer) tick(ctx context.Context, provider SnapshotProvider, sender contentSender, gate func() bool) {
	if gate != nil && !gate() {
		return
	}
	if sender.State() != ConnOpen {
		return
	}

	snap, err := provider.Snapshot(ctx)
	if err != nil {
		m.logger.Warn("work surface snapshot failed", "error", err)
		return
	}
	if len(snap.Data) == 0 {
		return
	}

	switch snap.Kind {
	case SnapshotImage:
		sender.SendMediaChunk(snap.Data, MimePNG)
	case SnapshotText:
		if sender.SupportsTextContent() {
			sender.SendTextContent(string(snap.Data))
		} else {
			sender.SendMediaChunk(snap.Data, MimeText)
		}
	default:
		m.logger.Warn("unknown snapshot kind", "kind", int(snap.Kind))
		return
	}
	m.sends.Add(1)
}
