package protocol

import "encoding/json"

// narrativeSchema decodes the narrative vocabulary, where content and
// auxiliary fields arrive nested under "message" and each stream frame
// carries the latest value of every field it mentions.
type narrativeSchema struct{}

func (narrativeSchema) Name() string { return "narrative" }
func (narrativeSchema) Path() string { return "/ws/chat" }

func (narrativeSchema) Map(tag string, fields Fields) (Event, error) {
	switch tag {
	case TypeStart:
		return NewStart(), nil

	case TypeStream, TypeEnd:
		msg := message(fields)
		content, err := optionalString(msg, "content")
		if err != nil {
			return Event{}, &fieldError{field: "message.content", err: ErrInvalidField}
		}
		kind := KindContentDelta
		if tag == TypeEnd {
			kind = KindEnd
		}
		return Event{Kind: kind, Content: content, Fields: auxFields(msg)}, nil

	case TypeError:
		msg := message(fields)
		content, err := optionalString(msg, "content")
		if err != nil {
			return Event{}, &fieldError{field: "message.content", err: ErrInvalidField}
		}
		text := "Error"
		if content != nil && *content != "" {
			text = *content
		}
		return NewError(text, ""), nil

	default:
		return unrecognized(tag), nil
	}
}

// message returns the nested message object. The backend sends an empty
// string when it has nothing to report, so any value that is not an object
// reads as an empty message.
func message(fields Fields) Fields {
	var msg Fields
	if err := json.Unmarshal(fields["message"], &msg); err != nil || msg == nil {
		return Fields{}
	}
	return msg
}

// auxFields copies every non-null field except content.
func auxFields(msg Fields) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range msg {
		if k == "content" || isNull(v) {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage, len(msg))
		}
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
