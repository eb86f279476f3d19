package conversation

import (
	"errors"

	"github.com/vango-dev/chatstream/pkg/protocol"
)

// ErrProtocolViolation is matched by every *Violation.
var ErrProtocolViolation = errors.New("conversation: protocol violation")

// ViolationKind classifies a well-formed event that arrived in an invalid
// state.
type ViolationKind uint8

// Violation kinds.
const (
	// ViolationNoDraft: a content, tool or end event arrived while idle.
	ViolationNoDraft ViolationKind = iota + 1
	// ViolationUnknownToolCall: a tool result named an id not in the draft.
	ViolationUnknownToolCall
	// ViolationDuplicateToolCall: a tool call reused an id in the draft.
	ViolationDuplicateToolCall
	// ViolationDuplicateToolResult: a second result arrived for one id.
	ViolationDuplicateToolResult
	// ViolationDraftSuperseded: start arrived while a draft was streaming.
	// The old draft is discarded and the start is still applied.
	ViolationDraftSuperseded
)

// String returns the metric label for the kind.
func (k ViolationKind) String() string {
	switch k {
	case ViolationNoDraft:
		return "no_draft"
	case ViolationUnknownToolCall:
		return "unknown_tool_call"
	case ViolationDuplicateToolCall:
		return "duplicate_tool_call"
	case ViolationDuplicateToolResult:
		return "duplicate_tool_result"
	case ViolationDraftSuperseded:
		return "draft_superseded"
	default:
		return "unknown"
	}
}

// Violation reports an event the reducer refused (or, for
// ViolationDraftSuperseded, applied after discarding state).
type Violation struct {
	Kind       ViolationKind
	Event      protocol.Kind
	ToolCallID string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	msg := "conversation: " + v.Kind.String() + " on " + v.Event.String()
	if v.ToolCallID != "" {
		msg += " (tool call " + v.ToolCallID + ")"
	}
	return msg
}

// Unwrap lets errors.Is match ErrProtocolViolation.
func (v *Violation) Unwrap() error {
	return ErrProtocolViolation
}

// Applied reports whether the event changed state despite the violation.
func (v *Violation) Applied() bool {
	return v.Kind == ViolationDraftSuperseded
}
