package protocol

import (
	"encoding/json"
	"fmt"
)

// Fields is the top-level object of a frame, keyed by property name.
type Fields map[string]json.RawMessage

// Schema maps one wire vocabulary onto canonical events.
type Schema interface {
	// Name identifies the vocabulary ("narrative" or "agent").
	Name() string

	// Path is the conventional endpoint path for the vocabulary.
	Path() string

	// Map converts a frame with the given type tag. Unknown tags must map to
	// KindUnrecognized without error.
	Map(tag string, fields Fields) (Event, error)
}

// FrameValidator is implemented by schemas that check the raw frame before
// it is mapped.
type FrameValidator interface {
	ValidateFrame(frame []byte) error
}

// Built-in vocabularies.
var (
	Narrative Schema = narrativeSchema{}
	Agent     Schema = agentSchema{}
)

// SchemaByName returns the built-in schema with the given name.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case Narrative.Name():
		return Narrative, nil
	case Agent.Name():
		return Agent, nil
	default:
		return nil, fmt.Errorf("protocol: unknown schema %q", name)
	}
}

// unrecognized builds the forward-compatible no-op event.
func unrecognized(tag string) Event {
	return Event{Kind: KindUnrecognized, Type: tag}
}
