package client

import (
	"net/http"
	"time"

	"github.com/vango-dev/chatstream/pkg/protocol"
)

// Config holds the runtime settings of a Session.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the assistant backend.
	Endpoint string

	// Schema selects the inbound wire vocabulary.
	// Default: protocol.Agent.
	Schema protocol.Schema

	// StrictValidation checks every frame against the schema's JSON Schema
	// document before mapping it.
	// Default: false.
	StrictValidation bool

	// Timeouts

	// HandshakeTimeout is the maximum time for the WebSocket handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a command.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// DraftTimeout abandons a draft that receives no event for this long.
	// Zero disables the timeout.
	// Default: 0.
	DraftTimeout time.Duration

	// Limits

	// MaxFrameSize is the largest inbound frame the session decodes.
	// Larger frames are drained, counted as decode errors and dropped.
	// Default: protocol.MaxFrameSize.
	MaxFrameSize int64

	// ReadLimit is the largest message the connection reads at all. A
	// message over it closes the connection. It is raised to at least
	// twice MaxFrameSize.
	// Default: 16 * protocol.MaxFrameSize.
	ReadLimit int64

	// Features

	// EnableCompression negotiates per-message compression.
	// Default: false.
	EnableCompression bool

	// Header is sent with the handshake request.
	Header http.Header
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Schema:           protocol.Agent,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxFrameSize:     protocol.MaxFrameSize,
		ReadLimit:        16 * protocol.MaxFrameSize,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Header = c.Header.Clone()
	return &clone
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	out := c.Clone()
	if out == nil {
		out = DefaultConfig()
	}
	def := DefaultConfig()
	if out.Schema == nil {
		out.Schema = def.Schema
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = def.HandshakeTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.MaxFrameSize <= 0 {
		out.MaxFrameSize = def.MaxFrameSize
	}
	if out.ReadLimit <= 0 {
		out.ReadLimit = def.ReadLimit
	}
	if out.ReadLimit < 2*out.MaxFrameSize {
		out.ReadLimit = 2 * out.MaxFrameSize
	}
	return out
}
