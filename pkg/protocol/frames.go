package protocol

import "encoding/json"

// Wire type tags.
const (
	TypeStart           = "start"
	TypeStream          = "stream"
	TypeEnd             = "end"
	TypeError           = "error"
	TypeToolCall        = "tool_call"
	TypeToolResult      = "tool_result"
	TypeContentDelta    = "content_delta"
	TypeContentComplete = "content_complete"
)

// Error codes sent by the agent vocabulary.
const (
	CodeUnknown    = "UNKNOWN_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeProcessing = "PROCESSING_ERROR"
)

// NarrativeMessage is the nested payload of narrative frames.
// Nil fields are sent as JSON null and leave the draft value untouched.
type NarrativeMessage struct {
	Title   *string `json:"title"`
	Haiku   *string `json:"haiku"`
	Content *string `json:"content"`
}

// NarrativeFrame is one frame of the narrative vocabulary.
type NarrativeFrame struct {
	Source  string           `json:"source"`
	Message NarrativeMessage `json:"message"`
	Type    string           `json:"type"`
}

// StartFrame opens an agent response.
type StartFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ToolCallFrame announces a tool invocation.
type ToolCallFrame struct {
	Type       string          `json:"type"`
	ToolName   string          `json:"tool_name"`
	ToolArgs   json.RawMessage `json:"tool_args"`
	ToolCallID string          `json:"tool_call_id"`
}

// ToolResultFrame carries the result of a tool invocation.
type ToolResultFrame struct {
	Type       string          `json:"type"`
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Result     json.RawMessage `json:"result"`
}

// ContentDeltaFrame carries the newest chunk and the running total.
type ContentDeltaFrame struct {
	Type        string `json:"type"`
	Delta       string `json:"delta"`
	Accumulated string `json:"accumulated"`
}

// ContentCompleteFrame carries the final text.
type ContentCompleteFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ErrorFrame reports an application error.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// EndFrame closes an agent response.
type EndFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Str returns a pointer to s, for building NarrativeMessage literals.
func Str(s string) *string {
	return &s
}
