package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tutorvox/tutorvox/pkg/core"
)

// DeviceConstraints carry the microphone acquisition hints. Platform
// backends apply what they can and ignore the rest.
type DeviceConstraints struct {
	SampleRate       int
	Channels         int
	DeviceID         string
	EchoCancellation bool
	AutoGainControl  bool
	NoiseSuppression bool
}

// DefaultDeviceConstraints requests 16 kHz mono with all DSP hints on, the
// format the model ingests directly.
func DefaultDeviceConstraints() DeviceConstraints {
	return DeviceConstraints{
		SampleRate:       16000,
		Channels:         1,
		EchoCancellation: true,
		AutoGainControl:  true,
		NoiseSuppression: true,
	}
}

// Stream is one open microphone stream.
type Stream interface {
	// Stop releases the stream. Safe to call more than once.
	Stop() error
	// Active reports whether the stream is still capturing.
	Active() bool
}

// Device is the platform microphone boundary. Open starts capture and
// delivers raw s16le PCM to onData from the device's own thread; chunk
// sizes are whatever the platform produces.
type Device interface {
	Open(ctx context.Context, constraints DeviceConstraints, onData func(pcm []byte)) (Stream, error)
}

// CapturePipeline turns raw device audio into fixed-size frames, meters
// them, and forwards the ones that pass the gate. Metering always runs;
// the gate only controls forwarding, so level indicators keep moving while
// the model is speaking.
type CapturePipeline struct {
	device Device
	cfg    CaptureConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stream  Stream
	done    chan struct{}

	level   atomic.Int64
	dropped atomic.Uint64
}

// NewCapturePipeline creates an idle pipeline around a device.
func NewCapturePipeline(device Device, cfg CaptureConfig, logger *slog.Logger) *CapturePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &CapturePipeline{
		device: device,
		cfg:    cfg,
		logger: logger,
	}
}

// Start acquires the microphone and begins forwarding frames. Each complete
// frame is metered, then handed to forward only when gate returns true.
// A device acquisition failure leaves nothing allocated.
func (p *CapturePipeline) Start(ctx context.Context, constraints DeviceConstraints, forward func(AudioFrame), gate func() bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return core.NewStateError("capture already running")
	}
	if p.cfg.FrameSamples <= 0 || p.cfg.Audio.BytesPerSample() <= 0 {
		return core.NewSetupError(fmt.Sprintf("invalid capture config: %d samples/frame", p.cfg.FrameSamples), nil)
	}

	queue := p.cfg.QueueFrames
	if queue <= 0 {
		queue = DefaultCaptureConfig().QueueFrames
	}
	assembler := newFrameAssembler(p.cfg)
	frames := make(chan AudioFrame, queue)
	done := make(chan struct{})

	// The device invokes onData from its capture thread; keep it cheap and
	// never block it on the consumer.
	onData := func(pcm []byte) {
		for _, frame := range assembler.Append(pcm) {
			level := Level(frame)
			p.level.Store(int64(level))
			select {
			case frames <- AudioFrame{PCM: frame, Level: level}:
			default:
				p.dropped.Add(1)
			}
		}
	}

	stream, err := p.device.Open(ctx, constraints, onData)
	if err != nil {
		return core.NewDeviceError("microphone open failed", err)
	}

	p.running = true
	p.stream = stream
	p.done = done

	go func() {
		for {
			select {
			case <-done:
				return
			case frame := <-frames:
				if gate == nil || gate() {
					forward(frame)
				}
			}
		}
	}()

	p.logger.Debug("capture started",
		"sample_rate", constraints.SampleRate,
		"frame_samples", p.cfg.FrameSamples)
	return nil
}

// Stop releases the microphone and halts forwarding. Idempotent.
func (p *CapturePipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stream := p.stream
	done := p.done
	p.stream = nil
	p.done = nil
	p.mu.Unlock()

	close(done)
	p.level.Store(0)
	if err := stream.Stop(); err != nil {
		return core.NewDeviceError("microphone stop failed", err)
	}
	p.logger.Debug("capture stopped")
	return nil
}

// Running reports whether the pipeline holds an open stream.
func (p *CapturePipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// InputLevel returns the latest 0-100 microphone meter reading.
func (p *CapturePipeline) InputLevel() int {
	return int(p.level.Load())
}

// DroppedFrames returns how many frames the consumer could not keep up with.
func (p *CapturePipeline) DroppedFrames() uint64 {
	return p.dropped.Load()
}
