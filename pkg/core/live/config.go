package live

import (
	"time"
)

// SessionState tracks the lifecycle of a tutoring session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateReady
	StateListening
	StateMuted
	StateDisconnected
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateMuted:
		return "muted"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnState tracks the websocket connection lifecycle.
type ConnState int

const (
	ConnClosed ConnState = iota
	ConnConnecting
	ConnOpen
)

// String returns the connection state name.
func (s ConnState) String() string {
	switch s {
	case ConnClosed:
		return "closed"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	default:
		return "unknown"
	}
}

// AudioConfig describes a PCM stream (s16le, interleaved).
type AudioConfig struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultAudioConfig returns the microphone format Gemini Live ingests.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// DefaultOutputAudioConfig returns the format Gemini Live emits.
func DefaultOutputAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    24000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the PCM byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * c.BitsPerSample / 8
}

// BytesPerSample returns the size of one interleaved sample frame.
func (c AudioConfig) BytesPerSample() int {
	return c.Channels * c.BitsPerSample / 8
}

// DurationMs returns the play time of a PCM buffer in milliseconds.
func (c AudioConfig) DurationMs(numBytes int) int {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return numBytes * 1000 / bps
}

// Duration returns the play time of a PCM buffer.
func (c AudioConfig) Duration(numBytes int) time.Duration {
	return time.Duration(c.DurationMs(numBytes)) * time.Millisecond
}

// BytesForDurationMs returns the PCM size of a span in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return c.BytesPerSecond() * ms / 1000
}

// CaptureConfig controls the microphone pipeline.
type CaptureConfig struct {
	Audio AudioConfig
	// FrameSamples is the fixed frame size handed downstream, in samples.
	FrameSamples int
	// QueueFrames bounds the hand-off queue between the device callback and
	// the forwarding goroutine. Overflow drops the newest frame.
	QueueFrames int
}

// DefaultCaptureConfig returns 4096-sample frames of 16 kHz mono PCM.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Audio:        DefaultAudioConfig(),
		FrameSamples: 4096,
		QueueFrames:  16,
	}
}

// ContentConfig controls the work-surface snapshot cadence.
type ContentConfig struct {
	Interval time.Duration
}

// DefaultContentConfig snapshots every two seconds.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{Interval: 2 * time.Second}
}
