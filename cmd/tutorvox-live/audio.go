package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/core/live"
)

const micPeriodMS = 20

// malgoDevice opens the system microphone through miniaudio.
type malgoDevice struct{}

func (malgoDevice) Open(_ context.Context, constraints live.DeviceConstraints, onData func(pcm []byte)) (live.Stream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return nil, core.NewDeviceError("audio context init failed", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(constraints.Channels)
	cfg.SampleRate = uint32(constraints.SampleRate)
	cfg.PeriodSizeInMilliseconds = micPeriodMS

	s := &malgoStream{mctx: mctx}
	s.active.Store(true)

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if s.active.Load() {
				onData(input)
			}
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		return nil, core.NewDeviceError("microphone init failed", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		return nil, core.NewDeviceError("microphone start failed", err)
	}
	return s, nil
}

type malgoStream struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	active atomic.Bool
	once   sync.Once
}

func (s *malgoStream) Stop() error {
	s.once.Do(func() {
		s.active.Store(false)
		_ = s.device.Stop()
		s.device.Uninit()
		_ = s.mctx.Uninit()
	})
	return nil
}

func (s *malgoStream) Active() bool { return s.active.Load() }

// otoSink renders model speech through the system speaker. oto pulls from
// an internal buffer via Read; Write appends and Flush discards.
type otoSink struct {
	ctx    *oto.Context
	player *oto.Player

	mu     sync.Mutex
	buf    []byte
	closed bool
}

func newOtoSink(audio live.AudioConfig) (*otoSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
		// Short buffer keeps latency low without starving the device.
		BufferSize: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, core.NewDeviceError("speaker init failed", err)
	}
	<-ready

	return &otoSink{ctx: ctx}, nil
}

func (s *otoSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.NewDeviceError("speaker is closed", nil)
	}
	s.buf = append(s.buf, pcm...)
	if s.player == nil {
		s.player = s.ctx.NewPlayer(s)
		s.player.Play()
	}
	return nil
}

// Read feeds oto's pull loop. Silence is returned when the buffer runs dry
// so the player never stalls between model turns.
func (s *otoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *otoSink) Flush() error {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		_ = player.Close()
	}
	return nil
}

func (s *otoSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	return nil
}
