package client

import (
	"log/slog"

	"github.com/vango-dev/chatstream/pkg/telemetry"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer creates a span for every applied event.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}
