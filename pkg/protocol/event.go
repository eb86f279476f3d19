package protocol

import "encoding/json"

// Kind identifies a canonical protocol event.
type Kind uint8

// Canonical event kinds.
const (
	KindUnrecognized Kind = iota
	KindStart
	KindContentDelta
	KindContentComplete
	KindToolCall
	KindToolResult
	KindEnd
	KindError
)

// String returns the string representation of the event kind.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindContentDelta:
		return "content_delta"
	case KindContentComplete:
		return "content_complete"
	case KindToolCall:
		return "tool_call"
	case KindToolResult:
		return "tool_result"
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	default:
		return "unrecognized"
	}
}

// Terminal reports whether the kind ends a streamed response.
func (k Kind) Terminal() bool {
	return k == KindEnd || k == KindError
}

// Event is the decoded, vocabulary-independent form of one frame.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	// Type is the wire tag the event was decoded from.
	Type string

	// Content is the accumulated or final text. Nil means the frame did not
	// carry content and the draft keeps its current value.
	Content *string

	// Fields are auxiliary pass-through values (title, haiku, timestamp).
	// Present keys override the draft's values on merge.
	Fields map[string]json.RawMessage

	// Tool activity (KindToolCall, KindToolResult).
	ToolCallID string
	ToolName   string
	ToolArgs   json.RawMessage
	ToolResult json.RawMessage

	// Application error (KindError).
	Message string
	Code    string
}

// NewStart returns a start event.
func NewStart() Event {
	return Event{Kind: KindStart, Type: TypeStart}
}

// NewContentDelta returns a delta carrying the accumulated text.
func NewContentDelta(accumulated string) Event {
	return Event{Kind: KindContentDelta, Type: TypeContentDelta, Content: &accumulated}
}

// NewContentComplete returns an event carrying the final text.
func NewContentComplete(content string) Event {
	return Event{Kind: KindContentComplete, Type: TypeContentComplete, Content: &content}
}

// NewToolCall returns a tool invocation event.
func NewToolCall(id, name string, args json.RawMessage) Event {
	return Event{Kind: KindToolCall, Type: TypeToolCall, ToolCallID: id, ToolName: name, ToolArgs: args}
}

// NewToolResult returns a tool completion event.
func NewToolResult(id string, result json.RawMessage) Event {
	return Event{Kind: KindToolResult, Type: TypeToolResult, ToolCallID: id, ToolResult: result}
}

// NewEnd returns an end event with no trailing fields.
func NewEnd() Event {
	return Event{Kind: KindEnd, Type: TypeEnd}
}

// NewError returns an application error event.
func NewError(message, code string) Event {
	return Event{Kind: KindError, Type: TypeError, Message: message, Code: code}
}
