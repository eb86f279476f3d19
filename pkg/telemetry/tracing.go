package telemetry

import (
	"context"
	"errors"

	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "chatstream"

// TracerConfig configures event tracing.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "chatstream").
	TracerName string

	// Provider supplies the tracer. If nil, the global provider is used.
	Provider trace.TracerProvider
}

// TracerOption configures event tracing.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *TracerConfig) {
		c.Provider = tp
	}
}

// Tracer creates one span per applied event.
// All methods are safe on a nil receiver.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer resolves a tracer from the configured provider.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(config.TracerName)}
}

// StartEvent starts a span for ev decoded under schema.
// The caller must pass the span to EndEvent.
func (t *Tracer) StartEvent(ctx context.Context, schema string, ev protocol.Event) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	attrs := []attribute.KeyValue{
		attribute.String("chatstream.schema", schema),
		attribute.String("chatstream.event", ev.Kind.String()),
		attribute.String("chatstream.type", ev.Type),
	}
	if ev.ToolCallID != "" {
		attrs = append(attrs, attribute.String("chatstream.tool_call_id", ev.ToolCallID))
	}
	return t.tracer.Start(ctx, "chatstream."+ev.Kind.String(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
}

// EndEvent records the outcome of applying the event and ends span.
func (t *Tracer) EndEvent(span trace.Span, err error) {
	if t == nil || span == nil {
		return
	}
	defer span.End()

	var v *conversation.Violation
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.As(err, &v):
		span.SetAttributes(attribute.String("chatstream.violation", v.Kind.String()))
		span.RecordError(err)
		if v.Applied() {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
