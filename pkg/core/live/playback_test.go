package live

import (
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu      sync.Mutex
	waiters []chan time.Time
}

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// advance releases all registered render waits, blocking until at least one
// exists. Channels are buffered so releasing an abandoned wait cannot hang.
func (c *manualClock) advance(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.waiters) > 0 {
			waiters := c.waiters
			c.waiters = nil
			c.mu.Unlock()
			for _, ch := range waiters {
				ch <- time.Now()
			}
			return
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a render wait to advance")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeSink struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
	wrote   chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{wrote: make(chan struct{}, 16)}
}

func (s *fakeSink) Write(pcm []byte) error {
	s.mu.Lock()
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	s.writes = append(s.writes, chunk)
	s.mu.Unlock()
	s.wrote <- struct{}{}
	return nil
}

func (s *fakeSink) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeSink) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func waitWrite(t *testing.T, s *fakeSink) {
	t.Helper()
	select {
	case <-s.wrote:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for sink write")
	}
}

func pollUntil(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPlayback_SpeakingSignal(t *testing.T) {
	sink := newFakeSink()
	clock := &manualClock{}
	p := NewPlaybackPipeline(sink, DefaultOutputAudioConfig(), clock, nil)
	defer p.Close()

	chunk := pcmFromSamples(make([]int16, 128))
	p.Enqueue(chunk)
	if !p.Speaking() {
		t.Errorf("Speaking() = false right after Enqueue, want true")
	}

	waitWrite(t, sink)
	if !p.Speaking() {
		t.Errorf("Speaking() = false while rendering, want true")
	}

	clock.advance(t)
	pollUntil(t, func() bool { return !p.Speaking() }, "speaking to drop after render")
	if got := p.OutputLevel(); got != 0 {
		t.Errorf("OutputLevel() after render = %d, want 0", got)
	}
}

func TestPlayback_FIFOOrder(t *testing.T) {
	sink := newFakeSink()
	clock := &manualClock{}
	p := NewPlaybackPipeline(sink, DefaultOutputAudioConfig(), clock, nil)
	defer p.Close()

	for i := byte(1); i <= 3; i++ {
		p.Enqueue([]byte{i, 0, i, 0})
	}
	for i := 0; i < 3; i++ {
		waitWrite(t, sink)
		clock.advance(t)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(sink.writes))
	}
	for i, chunk := range sink.writes {
		if chunk[0] != byte(i+1) {
			t.Errorf("write %d starts with %d, want %d", i, chunk[0], i+1)
		}
	}
}

func TestPlayback_InterruptFlushesImmediately(t *testing.T) {
	sink := newFakeSink()
	clock := &manualClock{}
	p := NewPlaybackPipeline(sink, DefaultOutputAudioConfig(), clock, nil)
	defer p.Close()

	p.Enqueue(pcmFromSamples(make([]int16, 256)))
	p.Enqueue(pcmFromSamples(make([]int16, 256)))
	waitWrite(t, sink) // first chunk is now mid-render

	p.Interrupt()
	if p.Speaking() {
		t.Errorf("Speaking() = true immediately after Interrupt, want false")
	}
	pollUntil(t, func() bool { return sink.flushCount() == 1 }, "sink flush")

	// The queued second chunk must never render.
	time.Sleep(50 * time.Millisecond)
	if got := sink.writeCount(); got != 1 {
		t.Errorf("writes after interrupt = %d, want 1", got)
	}
}

func TestPlayback_EnqueueAfterCloseIgnored(t *testing.T) {
	sink := newFakeSink()
	p := NewPlaybackPipeline(sink, DefaultOutputAudioConfig(), &manualClock{}, nil)
	p.Close()
	p.Close() // idempotent

	p.Enqueue([]byte{1, 2})
	time.Sleep(20 * time.Millisecond)
	if got := sink.writeCount(); got != 0 {
		t.Errorf("writes after close = %d, want 0", got)
	}
	if p.Speaking() {
		t.Errorf("Speaking() = true after close")
	}
}

func TestPlayback_ResumesAfterInterrupt(t *testing.T) {
	sink := newFakeSink()
	clock := &manualClock{}
	p := NewPlaybackPipeline(sink, DefaultOutputAudioConfig(), clock, nil)
	defer p.Close()

	p.Enqueue([]byte{1, 0})
	waitWrite(t, sink)
	p.Interrupt()

	// A fresh utterance after the interrupt plays normally.
	p.Enqueue([]byte{2, 0})
	if !p.Speaking() {
		t.Errorf("Speaking() = false after new utterance, want true")
	}
	waitWrite(t, sink)
	clock.advance(t)
	pollUntil(t, func() bool { return !p.Speaking() }, "speaking to drop")
}
