// Package protocol implements the JSON wire protocol spoken between a chat
// client and a streaming assistant.
//
// Every inbound WebSocket message is one self-contained JSON object (a
// frame) tagged by its "type" field. Two frame vocabularies exist:
//
//   - Narrative (/ws/chat): start, stream, end, error. Content and auxiliary
//     fields (title, haiku) travel inside a nested "message" object.
//   - Agent (/ws/agent): start, tool_call, tool_result, content_delta,
//     content_complete, end, error. Fields are flat.
//
// A Schema maps one vocabulary onto the canonical Event set consumed by the
// conversation reducer, so the state machine is written once.
//
// # Decoding
//
//	ev, err := protocol.Decode(protocol.Agent, frame)
//	if err != nil {
//	    // *DecodeError: the frame is dropped, session state is untouched
//	}
//	if ev.Kind == protocol.KindUnrecognized {
//	    // unknown "type" tag, forward compatible no-op
//	}
//
// Wrap a schema with Strict to validate each frame against the embedded
// JSON Schema for its vocabulary before mapping.
//
// # Encoding
//
// Outbound user commands carry no envelope: EncodeCommand returns the raw
// text as the frame payload.
//
// # Content deltas
//
// content_delta carries the accumulated text, not an increment. Applying
// the same delta twice leaves the draft unchanged.
//
// # File Structure
//
//   - event.go: canonical Event and Kind
//   - frames.go: wire frame types and tags
//   - schema.go: Schema interface and lookup
//   - narrative.go, agent.go: vocabulary adapters
//   - decoder.go: envelope parsing and DecodeError
//   - encoder.go: outbound command encoding
//   - strict.go: JSON Schema validation
//   - limits.go: size limits
package protocol
