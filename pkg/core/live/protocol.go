package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tutorvox/tutorvox/pkg/core"
)

// Wire types for the Gemini Live BidiGenerateContent websocket protocol.
// The client sends exactly one setup message, then realtimeInput for media
// and clientContent for text turns. The server replies with setupComplete
// followed by serverContent messages.

const (
	// MimePCM tags raw microphone audio chunks.
	MimePCM = "audio/pcm"
	// MimePNG tags canvas snapshot chunks.
	MimePNG = "image/png"
	// MimeText tags plain-text editor snapshots sent as media.
	MimeText = "text/plain"
)

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *contentPayload   `json:"systemInstruction,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentPayload `json:"turns"`
	TurnComplete bool             `json:"turnComplete"`
}

type contentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []partPayload `json:"parts"`
}

type partPayload struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn           *contentPayload `json:"modelTurn,omitempty"`
	TurnComplete        bool            `json:"turnComplete,omitempty"`
	Interrupted         bool            `json:"interrupted,omitempty"`
	OutputTranscription *transcription  `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

func encodeSetup(b Backend) ([]byte, error) {
	payload := setupPayload{
		Model: b.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		OutputAudioTranscription: &struct{}{},
	}
	if b.SystemInstruction != "" {
		payload.SystemInstruction = &contentPayload{
			Parts: []partPayload{{Text: b.SystemInstruction}},
		}
	}
	return json.Marshal(setupMessage{Setup: payload})
}

func encodeMediaChunk(data []byte, mimeType string) ([]byte, error) {
	return json.Marshal(realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	})
}

func encodeTextTurn(text string) ([]byte, error) {
	return json.Marshal(clientContentMessage{
		ClientContent: clientContent{
			Turns: []contentPayload{{
				Role:  "user",
				Parts: []partPayload{{Text: text}},
			}},
			TurnComplete: true,
		},
	})
}

// decodeServerFrame maps one wire message to its inbound events, preserving
// part order. Unrecognized messages produce a protocol error; decoding
// continues with the next frame.
func decodeServerFrame(data []byte) ([]InboundEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, core.NewProtocolError(fmt.Sprintf("malformed server frame: %v", err))
	}

	if msg.SetupComplete != nil {
		return []InboundEvent{SetupAckEvent{}}, nil
	}

	sc := msg.ServerContent
	if sc == nil {
		return nil, core.NewProtocolError("server frame with no recognized payload")
	}

	var events []InboundEvent
	if sc.Interrupted {
		events = append(events, InterruptedEvent{})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			switch {
			case part.InlineData != nil:
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return events, core.NewProtocolError(fmt.Sprintf("inline audio is not valid base64: %v", err))
				}
				events = append(events, AudioChunkEvent{PCM: pcm})
			case part.Text != "":
				events = append(events, TranscriptTextEvent{Text: part.Text})
			}
		}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, TranscriptTextEvent{Text: sc.OutputTranscription.Text})
	}
	if sc.TurnComplete {
		events = append(events, TurnCompleteEvent{})
	}
	if len(events) == 0 {
		return nil, core.NewProtocolError("server content with no actionable parts")
	}
	return events, nil
}
