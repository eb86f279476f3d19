// Package telemetry instruments a chat session with Prometheus metrics and
// OpenTelemetry traces.
//
// Both halves are optional and nil-safe: a session built without them
// calls the same recording methods on nil receivers.
//
// # Prometheus Metrics
//
//   - chatstream_frames_received_total: inbound frames
//   - chatstream_frame_size_bytes: inbound frame size histogram
//   - chatstream_decode_errors_total: frames dropped as malformed
//   - chatstream_events_total: events applied, by kind
//   - chatstream_protocol_violations_total: refused events, by violation kind
//   - chatstream_unrecognized_events_total: events with unknown type tags
//   - chatstream_drafts_abandoned_total: drafts dropped, by reason
//   - chatstream_transport_errors_total: connection-level failures
//   - chatstream_submits_total: user submissions, by status
//   - chatstream_connected: 1 while the connection is open
//
//	m := telemetry.NewMetrics(
//	    telemetry.WithNamespace("myapp"),
//	    telemetry.WithRegistry(reg),
//	)
//	sess := client.NewSession(cfg, client.WithMetrics(m))
//
// # OpenTelemetry
//
// NewTracer resolves a tracer from the global provider unless one is
// supplied. Every applied event gets a span named after its kind carrying
// the schema, wire type and tool call id; protocol violations set the span
// status to Error.
package telemetry
