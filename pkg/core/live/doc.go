// Package live implements a real-time multimodal tutoring session against
// the Gemini Live websocket API.
//
// A session streams microphone audio to the model, plays the model's spoken
// replies, and periodically shows the model a snapshot of the user's work
// surface (a code editor or a sketch canvas). The model can be interrupted
// by the server at any time, which flushes queued playback immediately.
//
// # Architecture
//
// The package is built from five components wired together by a Controller:
//
//   - Transport: the websocket connection, setup handshake, and wire codec
//   - CapturePipeline: microphone acquisition, fixed-size framing, level metering
//   - PlaybackPipeline: FIFO playback of model audio with a speaking signal
//   - ContentMultiplexer: periodic work-surface snapshots on a fixed cadence
//   - Controller: the session state machine that owns all of the above
//
// # Data Flow
//
//	Mic → CapturePipeline → gate → Transport → Gemini Live
//	                                   │
//	Speaker ← PlaybackPipeline ← audio chunks / interrupted / transcript
//
//	Work surface → ContentMultiplexer → Transport (every 2s while listening)
//
// The gate drops microphone frames whenever the model is speaking, which is
// how echo of the model's own voice is kept out of its input. Frames are
// still metered while gated so UI level indicators keep moving.
//
// # State Machine
//
// The controller progresses through these states:
//
//	Idle → Connecting → Ready → Listening ⇄ Muted → Disconnected
//
// Mute and unmute reuse the live connection; the conversation context on the
// server side survives across mute cycles. StopSession tears everything down
// in order: capture, content, playback, transport.
package live
