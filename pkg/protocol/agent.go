package protocol

import "encoding/json"

// agentSchema decodes the tool-augmented vocabulary with flat fields.
type agentSchema struct{}

func (agentSchema) Name() string { return "agent" }
func (agentSchema) Path() string { return "/ws/agent" }

func (agentSchema) Map(tag string, fields Fields) (Event, error) {
	switch tag {
	case TypeStart:
		return NewStart(), nil

	case TypeToolCall:
		id, err := requiredString(fields, "tool_call_id")
		if err != nil {
			return Event{}, err
		}
		name, err := requiredString(fields, "tool_name")
		if err != nil {
			return Event{}, err
		}
		return NewToolCall(id, name, rawValue(fields, "tool_args")), nil

	case TypeToolResult:
		id, err := requiredString(fields, "tool_call_id")
		if err != nil {
			return Event{}, err
		}
		ev := NewToolResult(id, rawValue(fields, "result"))
		// tool_name is informational; the reducer matches on id only.
		if name, err := optionalString(fields, "tool_name"); err == nil && name != nil {
			ev.ToolName = *name
		}
		return ev, nil

	case TypeContentDelta:
		acc, err := requiredString(fields, "accumulated")
		if err != nil {
			return Event{}, err
		}
		return NewContentDelta(acc), nil

	case TypeContentComplete:
		content, err := requiredString(fields, "content")
		if err != nil {
			return Event{}, err
		}
		return NewContentComplete(content), nil

	case TypeEnd:
		ev := NewEnd()
		if ts, ok := fields["timestamp"]; ok && !isNull(ts) {
			ev.Fields = map[string]json.RawMessage{"timestamp": append(json.RawMessage(nil), ts...)}
		}
		return ev, nil

	case TypeError:
		msg, err := requiredString(fields, "message")
		if err != nil {
			return Event{}, err
		}
		code, err := optionalString(fields, "code")
		if err != nil {
			return Event{}, err
		}
		ev := NewError(msg, "")
		if code != nil {
			ev.Code = *code
		}
		return ev, nil

	default:
		return unrecognized(tag), nil
	}
}
