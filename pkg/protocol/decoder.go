package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Common decoding errors.
var (
	ErrFrameTooLarge  = errors.New("protocol: frame exceeds size limit")
	ErrNotObject      = errors.New("protocol: frame is not a JSON object")
	ErrMissingType    = errors.New("protocol: frame has no type tag")
	ErrMissingField   = errors.New("protocol: required field missing")
	ErrInvalidField   = errors.New("protocol: field has wrong type")
	ErrSchemaMismatch = errors.New("protocol: frame does not match schema")
)

// DecodeError reports a frame that could not be turned into an Event.
type DecodeError struct {
	Schema  string // Vocabulary used for decoding
	Type    string // Type tag, when it could be read
	Field   string // Offending field, when known
	Excerpt string // Leading bytes of the frame
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := "decode " + e.Schema
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// fieldError is returned by schema mappers; Decode fills in the rest.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// Decode parses one inbound frame with the given schema.
// Any failure is returned as a *DecodeError; unknown type tags decode to a
// KindUnrecognized event.
func Decode(s Schema, frame []byte) (Event, error) {
	fail := func(tag string, err error) (Event, error) {
		de := &DecodeError{Schema: s.Name(), Type: tag, Excerpt: excerpt(frame), Err: err}
		var fe *fieldError
		if errors.As(err, &fe) {
			de.Field = fe.field
			de.Err = fe.err
		}
		return Event{}, de
	}

	if len(frame) > MaxFrameSize {
		return fail("", ErrFrameTooLarge)
	}

	var fields Fields
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		return fail("", ErrNotObject)
	}

	rawTag, ok := fields["type"]
	if !ok || isNull(rawTag) {
		return fail("", ErrMissingType)
	}
	var tag string
	if err := json.Unmarshal(rawTag, &tag); err != nil {
		return fail("", &fieldError{field: "type", err: ErrInvalidField})
	}

	if v, ok := s.(FrameValidator); ok {
		if err := v.ValidateFrame(frame); err != nil {
			return fail(tag, err)
		}
	}

	ev, err := s.Map(tag, fields)
	if err != nil {
		return fail(tag, err)
	}
	ev.Type = tag
	return ev, nil
}

// excerpt returns a printable prefix of the frame for diagnostics.
func excerpt(frame []byte) string {
	if len(frame) <= maxExcerpt {
		return string(frame)
	}
	return string(frame[:maxExcerpt]) + "..."
}

// isNull reports whether a raw value is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// requiredString reads a string field that must be present.
func requiredString(fields Fields, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", &fieldError{field: key, err: ErrMissingField}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &fieldError{field: key, err: ErrInvalidField}
	}
	return s, nil
}

// optionalString reads a string field; nil means absent or null.
func optionalString(fields Fields, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &fieldError{field: key, err: ErrInvalidField}
	}
	return &s, nil
}

// rawValue returns a field's raw JSON, or JSON null when absent.
func rawValue(fields Fields, key string) json.RawMessage {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 {
		return json.RawMessage("null")
	}
	return append(json.RawMessage(nil), raw...)
}
