package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutorvox/tutorvox/pkg/core"
)

type fakeStream struct {
	active atomic.Bool
	stops  atomic.Int64
}

func (s *fakeStream) Stop() error {
	s.active.Store(false)
	s.stops.Add(1)
	return nil
}

func (s *fakeStream) Active() bool { return s.active.Load() }

type fakeDevice struct {
	openErr error

	mu     sync.Mutex
	stream *fakeStream
	onData func([]byte)
}

func (d *fakeDevice) Open(ctx context.Context, c DeviceConstraints, onData func([]byte)) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = &fakeStream{}
	d.stream.active.Store(true)
	d.onData = onData
	return d.stream, nil
}

// push feeds PCM into the pipeline as the device callback would.
func (d *fakeDevice) push(pcm []byte) {
	d.mu.Lock()
	onData := d.onData
	d.mu.Unlock()
	onData(pcm)
}

func smallCaptureConfig() CaptureConfig {
	cfg := DefaultCaptureConfig()
	cfg.FrameSamples = 4 // 8 bytes per frame
	return cfg
}

func collectFrames(t *testing.T, got *[]AudioFrame, mu *sync.Mutex) func(AudioFrame) {
	t.Helper()
	return func(f AudioFrame) {
		mu.Lock()
		*got = append(*got, f)
		mu.Unlock()
	}
}

func TestCapture_ForwardsFixedFrames(t *testing.T) {
	device := &fakeDevice{}
	p := NewCapturePipeline(device, smallCaptureConfig(), nil)

	var mu sync.Mutex
	var got []AudioFrame
	err := p.Start(context.Background(), DefaultDeviceConstraints(), collectFrames(t, &got, &mu), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	// 20 bytes: two full 8-byte frames plus 4 leftover bytes.
	device.push(make([]byte, 20))

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("frames forwarded = %d, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, f := range got {
		if len(f.PCM) != 8 {
			t.Errorf("frame %d size = %d, want 8", i, len(f.PCM))
		}
	}
}

func TestCapture_GateBlocksForwardingButMetersAnyway(t *testing.T) {
	device := &fakeDevice{}
	p := NewCapturePipeline(device, smallCaptureConfig(), nil)

	var mu sync.Mutex
	var got []AudioFrame
	gate := func() bool { return false }
	if err := p.Start(context.Background(), DefaultDeviceConstraints(), collectFrames(t, &got, &mu), gate); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	device.push(pcmFromSamples([]int16{-32768, 0, 0, 0}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n != 0 {
		t.Errorf("frames forwarded through closed gate = %d, want 0", n)
	}
	if got := p.InputLevel(); got != 100 {
		t.Errorf("InputLevel() = %d, want 100 even while gated", got)
	}
}

func TestCapture_DeviceOpenFailure(t *testing.T) {
	device := &fakeDevice{openErr: errors.New("mic busy")}
	p := NewCapturePipeline(device, smallCaptureConfig(), nil)

	err := p.Start(context.Background(), DefaultDeviceConstraints(), func(AudioFrame) {}, nil)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrDevice {
		t.Fatalf("err = %v, want device error", err)
	}
	if p.Running() {
		t.Errorf("Running() = true after failed start")
	}
}

func TestCapture_InvalidConfigIsSetupError(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.FrameSamples = 0
	p := NewCapturePipeline(&fakeDevice{}, cfg, nil)

	err := p.Start(context.Background(), DefaultDeviceConstraints(), func(AudioFrame) {}, nil)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrSetup {
		t.Fatalf("err = %v, want setup error", err)
	}
}

func TestCapture_StopReleasesStreamAndIsIdempotent(t *testing.T) {
	device := &fakeDevice{}
	p := NewCapturePipeline(device, smallCaptureConfig(), nil)

	if err := p.Start(context.Background(), DefaultDeviceConstraints(), func(AudioFrame) {}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if device.stream.Active() {
		t.Errorf("stream still active after Stop")
	}
	if got := device.stream.stops.Load(); got != 1 {
		t.Errorf("stream stops = %d, want 1", got)
	}
	if p.Running() {
		t.Errorf("Running() = true after Stop")
	}
	if got := p.InputLevel(); got != 0 {
		t.Errorf("InputLevel() after Stop = %d, want 0", got)
	}
}

func TestCapture_DoubleStartRejected(t *testing.T) {
	device := &fakeDevice{}
	p := NewCapturePipeline(device, smallCaptureConfig(), nil)

	if err := p.Start(context.Background(), DefaultDeviceConstraints(), func(AudioFrame) {}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	err := p.Start(context.Background(), DefaultDeviceConstraints(), func(AudioFrame) {}, nil)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrState {
		t.Fatalf("second Start err = %v, want state error", err)
	}
}
