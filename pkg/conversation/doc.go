// Package conversation assembles streamed assistant responses into a
// conversation history.
//
// A Reducer owns one State: an append-only history of finalized turns and
// at most one in-progress draft. Every inbound protocol event is applied
// through Reducer.Apply, which is the only code that mutates the draft.
//
// The reducer has two phases:
//
//	Idle ──start──> Streaming ──end/error──> Idle
//
// While streaming, content events overwrite the draft's text with the
// accumulated value carried by the event, tool calls append invocations,
// and tool results resolve them by id. An end event finalizes the draft as
// an assistant turn; an error event drops it and records an error turn.
//
// Events that are well-formed but arrive in the wrong phase (content while
// idle, a result for an unknown tool call) leave the state untouched and
// are reported as *Violation so callers can count them. Apply never panics
// and never returns anything else.
package conversation
