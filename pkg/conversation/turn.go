package conversation

import (
	"encoding/json"
	"slices"
)

// Role identifies who produced a turn.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// ToolInvocation records one remote tool call and its eventual result.
type ToolInvocation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Result is set once, when Resolved becomes true.
	Result   json.RawMessage `json:"result,omitempty"`
	Resolved bool            `json:"resolved"`
}

// Turn is one message in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// Code is the remote error code of an error turn.
	Code string `json:"code,omitempty"`

	// Fields holds auxiliary values (title, haiku, timestamp) as sent by
	// the remote side. They are never interpreted.
	Fields map[string]json.RawMessage `json:"fields,omitempty"`

	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// Field returns an auxiliary field decoded as a string.
func (t Turn) Field(key string) (string, bool) {
	raw, ok := t.Fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	c := t
	if t.Fields != nil {
		c.Fields = make(map[string]json.RawMessage, len(t.Fields))
		for k, v := range t.Fields {
			c.Fields[k] = slices.Clone(v)
		}
	}
	if t.ToolInvocations != nil {
		c.ToolInvocations = make([]ToolInvocation, len(t.ToolInvocations))
		for i, inv := range t.ToolInvocations {
			inv.Arguments = slices.Clone(inv.Arguments)
			inv.Result = slices.Clone(inv.Result)
			c.ToolInvocations[i] = inv
		}
	}
	return c
}

// invocation returns the draft's invocation with the given id.
func (t *Turn) invocation(id string) *ToolInvocation {
	for i := range t.ToolInvocations {
		if t.ToolInvocations[i].ID == id {
			return &t.ToolInvocations[i]
		}
	}
	return nil
}

// merge applies optional content and field overrides.
func (t *Turn) merge(content *string, fields map[string]json.RawMessage) {
	if content != nil {
		t.Content = *content
	}
	if len(fields) == 0 {
		return
	}
	if t.Fields == nil {
		t.Fields = make(map[string]json.RawMessage, len(fields))
	}
	for k, v := range fields {
		t.Fields[k] = slices.Clone(v)
	}
}
