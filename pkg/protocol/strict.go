package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// strictSchema validates every frame against the embedded JSON Schema of
// the wrapped vocabulary before mapping it.
type strictSchema struct {
	Schema

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// Strict wraps a built-in schema with JSON Schema validation. Frames whose
// type tag is unknown to the vocabulary are still accepted and decode to
// KindUnrecognized.
func Strict(s Schema) Schema {
	if _, ok := s.(*strictSchema); ok {
		return s
	}
	return &strictSchema{Schema: s}
}

// ValidateFrame implements FrameValidator.
func (s *strictSchema) ValidateFrame(frame []byte) error {
	s.once.Do(func() {
		s.compiled, s.err = compileSchema(s.Schema.Name())
	})
	if s.err != nil {
		return s.err
	}

	var v any
	if err := json.Unmarshal(frame, &v); err != nil {
		return ErrNotObject
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	path := "schemas/" + name + ".json"
	b, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("protocol: no schema for %q: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(path, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return c.Compile(path)
}
