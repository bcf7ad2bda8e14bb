package live

// InboundEvent is the decoded form of one server message part. The transport
// demultiplexes the wire stream into these and hands them to its owner in
// arrival order.
type InboundEvent interface {
	inboundEvent() string
}

// SetupAckEvent signals that the server accepted the setup message and the
// connection is ready for media.
type SetupAckEvent struct{}

func (SetupAckEvent) inboundEvent() string { return "setup_ack" }

// AudioChunkEvent carries one chunk of model speech as raw PCM.
type AudioChunkEvent struct {
	PCM []byte
}

func (AudioChunkEvent) inboundEvent() string { return "audio_chunk" }

// TranscriptTextEvent carries a fragment of the model's output transcript.
type TranscriptTextEvent struct {
	Text string
}

func (TranscriptTextEvent) inboundEvent() string { return "transcript_text" }

// TurnCompleteEvent signals the end of a model turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) inboundEvent() string { return "turn_complete" }

// InterruptedEvent signals that the server cut the model off, usually
// because the user started speaking. Queued playback must be flushed.
type InterruptedEvent struct{}

func (InterruptedEvent) inboundEvent() string { return "interrupted" }

// Callbacks are the observer hooks a session owner registers before start.
// All fields are optional; nil hooks are skipped. Hooks are invoked from
// pipeline goroutines and must not block.
type Callbacks struct {
	// OnTranscript receives model speech transcribed to text, fragment by
	// fragment as the model speaks.
	OnTranscript func(text string)

	// OnSessionStateChange fires with true when a session starts and false
	// when it ends.
	OnSessionStateChange func(active bool)

	// OnState fires on every controller state transition.
	OnState func(state SessionState)

	// OnError receives non-fatal pipeline errors (*core.Error).
	OnError func(err error)
}
