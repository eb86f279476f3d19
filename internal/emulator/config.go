package emulator

import (
	"net/http"
	"time"
)

// Config holds emulator settings.
type Config struct {
	// Addr is the address to listen on.
	// Default: "127.0.0.1:3000".
	Addr string

	// IdleTimeout closes a connection that sends no prompt for this long.
	// Default: 15 seconds.
	IdleTimeout time.Duration

	// ChunkDelay is the pause between streamed chunks.
	// Default: 0.
	ChunkDelay time.Duration

	// WriteTimeout bounds each frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxMessageSize is the largest prompt accepted.
	// Default: 64KB.
	MaxMessageSize int64

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 5 seconds.
	ShutdownTimeout time.Duration

	// CheckOrigin validates the request origin.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:3000",
		IdleTimeout:     15 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  64 * 1024,
		ShutdownTimeout: 5 * time.Second,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// withDefaults returns a copy with zero fields filled in.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.Addr == "" {
		out.Addr = def.Addr
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = def.MaxMessageSize
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = def.ShutdownTimeout
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = def.CheckOrigin
	}
	return &out
}
