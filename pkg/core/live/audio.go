package live

import (
	"encoding/binary"
	"math"
)

// CalculateRMSEnergy computes the normalized RMS energy (0.0-1.0) of
// s16le PCM audio.
func CalculateRMSEnergy(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var sum float64
	count := len(pcm) / 2
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		f := float64(sample) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(count))
}

// CalculatePeakAmplitude computes the normalized peak amplitude (0.0-1.0)
// of s16le PCM audio.
func CalculatePeakAmplitude(pcm []byte) float64 {
	var peak float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		f := math.Abs(float64(sample) / 32768.0)
		if f > peak {
			peak = f
		}
	}
	return peak
}

// Level maps s16le PCM to a 0-100 meter reading from its peak amplitude.
func Level(pcm []byte) int {
	level := int(math.Round(CalculatePeakAmplitude(pcm) * 100))
	if level > 100 {
		level = 100
	}
	return level
}

// AudioFrame is one fixed-size microphone frame with its meter reading.
type AudioFrame struct {
	PCM   []byte
	Level int
}

// frameAssembler slices an arbitrary PCM byte stream into frames of exactly
// frameBytes bytes. Partial data is buffered until the next append.
type frameAssembler struct {
	frameBytes int
	buf        []byte
}

func newFrameAssembler(cfg CaptureConfig) *frameAssembler {
	return &frameAssembler{
		frameBytes: cfg.FrameSamples * cfg.Audio.BytesPerSample(),
	}
}

// Append adds PCM bytes and returns zero or more complete frames. Returned
// frames are copies; callers may retain them.
func (a *frameAssembler) Append(pcm []byte) [][]byte {
	a.buf = append(a.buf, pcm...)

	var frames [][]byte
	for len(a.buf) >= a.frameBytes {
		frame := make([]byte, a.frameBytes)
		copy(frame, a.buf[:a.frameBytes])
		frames = append(frames, frame)
		a.buf = a.buf[a.frameBytes:]
	}
	return frames
}

// Pending returns the number of buffered bytes awaiting a full frame.
func (a *frameAssembler) Pending() int {
	return len(a.buf)
}
