package live

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tutorvox/tutorvox/pkg/core"
)

func TestEncodeSetup(t *testing.T) {
	data, err := encodeSetup(Backend{
		Model:             "models/gemini-2.0-flash-exp",
		SystemInstruction: "You are a patient coding tutor.",
	})
	if err != nil {
		t.Fatalf("encodeSetup: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	setup, ok := msg["setup"].(map[string]any)
	if !ok {
		t.Fatalf("missing setup key in %s", data)
	}
	if setup["model"] != "models/gemini-2.0-flash-exp" {
		t.Errorf("model = %v, want models/gemini-2.0-flash-exp", setup["model"])
	}
	if _, ok := setup["systemInstruction"]; !ok {
		t.Errorf("systemInstruction missing from %s", data)
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Errorf("outputAudioTranscription missing from %s", data)
	}
}

func TestEncodeMediaChunk(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03}
	data, err := encodeMediaChunk(pcm, MimePCM)
	if err != nil {
		t.Fatalf("encodeMediaChunk: %v", err)
	}

	var msg realtimeInputMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	chunks := msg.RealtimeInput.MediaChunks
	if len(chunks) != 1 {
		t.Fatalf("mediaChunks = %d, want 1", len(chunks))
	}
	if chunks[0].MimeType != "audio/pcm" {
		t.Errorf("mimeType = %q, want %q", chunks[0].MimeType, "audio/pcm")
	}
	if chunks[0].Data != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("data = %q, not base64 of input", chunks[0].Data)
	}
}

func TestEncodeTextTurn(t *testing.T) {
	data, err := encodeTextTurn("what does this function do?")
	if err != nil {
		t.Fatalf("encodeTextTurn: %v", err)
	}

	var msg clientContentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.ClientContent.TurnComplete {
		t.Errorf("turnComplete = false, want true")
	}
	if len(msg.ClientContent.Turns) != 1 || msg.ClientContent.Turns[0].Role != "user" {
		t.Fatalf("turns = %+v, want one user turn", msg.ClientContent.Turns)
	}
}

func TestDecodeServerFrame_SetupComplete(t *testing.T) {
	events, err := decodeServerFrame([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if _, ok := events[0].(SetupAckEvent); !ok {
		t.Errorf("event = %T, want SetupAckEvent", events[0])
	}
}

func TestDecodeServerFrame_AudioChunk(t *testing.T) {
	pcm := []byte{0x10, 0x20, 0x30, 0x40}
	frame := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` +
		base64.StdEncoding.EncodeToString(pcm) + `"}}]}}}`)

	events, err := decodeServerFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	chunk, ok := events[0].(AudioChunkEvent)
	if !ok {
		t.Fatalf("event = %T, want AudioChunkEvent", events[0])
	}
	if string(chunk.PCM) != string(pcm) {
		t.Errorf("pcm = %v, want %v", chunk.PCM, pcm)
	}
}

func TestDecodeServerFrame_InterruptedOrdersBeforeAudio(t *testing.T) {
	frame := []byte(`{"serverContent":{"interrupted":true,"turnComplete":true}}`)
	events, err := decodeServerFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if _, ok := events[0].(InterruptedEvent); !ok {
		t.Errorf("events[0] = %T, want InterruptedEvent", events[0])
	}
	if _, ok := events[1].(TurnCompleteEvent); !ok {
		t.Errorf("events[1] = %T, want TurnCompleteEvent", events[1])
	}
}

func TestDecodeServerFrame_Transcription(t *testing.T) {
	frame := []byte(`{"serverContent":{"outputTranscription":{"text":"try a binary search"}}}`)
	events, err := decodeServerFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	text, ok := events[0].(TranscriptTextEvent)
	if !ok {
		t.Fatalf("event = %T, want TranscriptTextEvent", events[0])
	}
	if text.Text != "try a binary search" {
		t.Errorf("text = %q, want %q", text.Text, "try a binary search")
	}
}

func TestDecodeServerFrame_Malformed(t *testing.T) {
	_, err := decodeServerFrame([]byte(`{not json`))
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrProtocol {
		t.Fatalf("err = %v, want protocol error", err)
	}
}

func TestDecodeServerFrame_Unrecognized(t *testing.T) {
	_, err := decodeServerFrame([]byte(`{"toolCall":{}}`))
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrProtocol {
		t.Fatalf("err = %v, want protocol error", err)
	}
}
