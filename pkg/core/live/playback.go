package live

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sink renders PCM to the output device. Write must accept the whole chunk;
// Flush discards anything written but not yet audible.
type Sink interface {
	Write(pcm []byte) error
	Flush() error
}

// Clock abstracts render-time waits so tests can drive playback without
// real time passing.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PlaybackPipeline plays model audio chunks in arrival order and exposes the
// speaking signal the capture gate keys off. Speaking goes true before the
// first sample of an utterance reaches the sink and false only once the last
// queued chunk has finished rendering, or immediately on Interrupt.
type PlaybackPipeline struct {
	sink   Sink
	cfg    AudioConfig
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	queue   [][]byte
	flushed chan struct{}
	closed  bool

	wake chan struct{}
	done chan struct{}

	speaking atomic.Bool
	level    atomic.Int64
}

// NewPlaybackPipeline creates a running pipeline. A nil clock uses real time.
func NewPlaybackPipeline(sink Sink, cfg AudioConfig, clock Clock, logger *slog.Logger) *PlaybackPipeline {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &PlaybackPipeline{
		sink:    sink,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		flushed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.renderLoop()
	return p
}

// Enqueue appends one chunk of model speech. The speaking signal goes true
// here, before rendering begins, so the capture gate closes first.
func (p *PlaybackPipeline) Enqueue(pcm []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	p.queue = append(p.queue, chunk)
	p.speaking.Store(true)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Interrupt discards all queued audio and flushes the sink. The speaking
// signal drops immediately; whatever was mid-render is cut off.
func (p *PlaybackPipeline) Interrupt() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	dropped := len(p.queue)
	p.queue = nil
	close(p.flushed)
	p.flushed = make(chan struct{})
	p.speaking.Store(false)
	p.level.Store(0)
	p.mu.Unlock()

	if err := p.sink.Flush(); err != nil {
		p.logger.Warn("sink flush failed", "error", err)
	}
	p.logger.Debug("playback interrupted", "dropped_chunks", dropped)
}

// Close stops the pipeline and flushes the sink. Idempotent.
func (p *PlaybackPipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.speaking.Store(false)
	p.level.Store(0)
	p.mu.Unlock()

	close(p.done)
	if err := p.sink.Flush(); err != nil {
		p.logger.Warn("sink flush failed", "error", err)
	}
}

// Speaking reports whether model audio is queued or rendering.
func (p *PlaybackPipeline) Speaking() bool {
	return p.speaking.Load()
}

// OutputLevel returns the 0-100 meter reading of the chunk being rendered.
func (p *PlaybackPipeline) OutputLevel() int {
	return int(p.level.Load())
}

func (p *PlaybackPipeline) renderLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		for {
			p.mu.Lock()
			if p.closed || len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			chunk := p.queue[0]
			p.queue = p.queue[1:]
			flushed := p.flushed
			p.mu.Unlock()

			p.level.Store(int64(Level(chunk)))
			if err := p.sink.Write(chunk); err != nil {
				p.logger.Warn("sink write failed", "error", err)
			}

			// Hold until the chunk has had time to render, or until an
			// interrupt invalidates it.
			select {
			case <-p.clock.After(p.cfg.Duration(len(chunk))):
			case <-flushed:
			case <-p.done:
				return
			}
		}

		p.mu.Lock()
		if len(p.queue) == 0 && !p.closed {
			p.speaking.Store(false)
			p.level.Store(0)
		}
		p.mu.Unlock()
	}
}
