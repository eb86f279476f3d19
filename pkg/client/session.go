package client

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
	"github.com/vango-dev/chatstream/pkg/telemetry"
)

// Snapshot is an immutable view of the conversation for presentation.
// Callers must not modify History or Draft.
type Snapshot struct {
	Connected bool
	History   []conversation.Turn
	Draft     *conversation.Turn
}

// Session connects one conversation to an assistant backend.
//
// Every state mutation runs under a single mutex: frames from the read
// loop, submissions, connectivity changes and draft timeouts. Readers use
// Snapshot, which never blocks on the mutex.
type Session struct {
	config    *Config
	schema    protocol.Schema
	transport *Transport
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	stats     stats

	mu         sync.Mutex
	state      conversation.State
	reducer    *conversation.Reducer
	handle     *Handle
	draftTimer *time.Timer
	draftSeq   uint64

	snapshot atomic.Pointer[Snapshot]
	changes  chan struct{}
}

// NewSession creates a disconnected Session. A nil config uses
// DefaultConfig().
func NewSession(config *Config, opts ...Option) *Session {
	config = config.withDefaults()

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	schema := config.Schema
	if config.StrictValidation {
		schema = protocol.Strict(schema)
	}

	s := &Session{
		config:  config,
		schema:  schema,
		logger:  o.logger.With("schema", schema.Name()),
		metrics: o.metrics,
		tracer:  o.tracer,
		changes: make(chan struct{}, 1),
	}
	s.reducer = conversation.NewReducer(&s.state)
	s.transport = NewTransport(config, Listener{
		OnOpen:           s.onOpen,
		OnFrame:          s.onFrame,
		OnClose:          s.onClose,
		OnTransportError: s.onTransportError,
	}, s.logger)
	s.snapshot.Store(&Snapshot{})
	return s
}

// Connect opens the connection to Config.Endpoint, replacing any open one.
// The conversation history survives reconnects.
func (s *Session) Connect(ctx context.Context) error {
	if s.config.Endpoint == "" {
		return ErrNoEndpoint
	}
	if _, err := s.transport.Open(ctx, s.config.Endpoint); err != nil {
		s.stats.transportErrors.Add(1)
		s.metrics.RecordTransportError()
		return err
	}
	return nil
}

// Close closes the connection. An unfinished draft is discarded.
func (s *Session) Close() error {
	err := s.transport.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle = nil
		s.disconnect()
	}
	return err
}

// Connected reports whether the connection is open.
func (s *Session) Connected() bool {
	return s.snapshot.Load().Connected
}

// Snapshot returns the latest published view.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Changes delivers a signal after every published change. Signals
// coalesce: a slow reader sees one pending signal, then reads the latest
// Snapshot.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Stats returns the session counters.
func (s *Session) Stats() StatsSnapshot {
	return s.stats.snapshot()
}

// Submit sends text to the assistant and appends it to the history as a
// user turn. It reports false, sending nothing, when the session is
// disconnected or text is blank.
func (s *Session) Submit(text string) bool {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" || s.handle == nil {
		s.rejectSubmit()
		return false
	}
	data, err := protocol.EncodeCommand(text)
	if err != nil {
		s.logger.Warn("submit rejected", "error", err)
		s.rejectSubmit()
		return false
	}
	if err := s.handle.Write(data); err != nil {
		s.rejectSubmit()
		return false
	}

	s.reducer.AppendUser(text)
	s.stats.submitsSent.Add(1)
	s.metrics.RecordSubmit("sent")
	s.publish()
	return true
}

func (s *Session) rejectSubmit() {
	s.stats.submitsRejected.Add(1)
	s.metrics.RecordSubmit("rejected")
}

func (s *Session) onOpen(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.abandonDraft(telemetry.ReasonClosed)
	}
	s.handle = h
	s.logger.Debug("session attached", "generation", h.Generation())
	s.stats.connects.Add(1)
	s.metrics.SetConnected(true)
	s.publish()
}

func (s *Session) onFrame(h *Handle, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h != s.handle {
		s.stats.staleFrames.Add(1)
		return
	}
	s.handleFrame(data)
}

func (s *Session) onClose(h *Handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h != s.handle {
		return
	}
	s.logger.Debug("session detached", "generation", h.Generation(), "error", err)
	s.handle = nil
	s.disconnect()
}

func (s *Session) onTransportError(h *Handle, err error) {
	s.stats.transportErrors.Add(1)
	s.metrics.RecordTransportError()
}

// handleFrame decodes one frame and applies it. Nothing escapes: decode
// failures and violations are counted and logged, panics are recovered.
func (s *Session) handleFrame(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.handlerPanics.Add(1)
			s.logger.Error("frame handler panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	s.stats.recordFrame(len(data))
	s.metrics.RecordFrame(len(data))

	if int64(len(data)) > s.config.MaxFrameSize {
		s.stats.decodeErrors.Add(1)
		s.metrics.RecordDecodeError()
		s.logger.Debug("dropped oversized frame",
			"limit", s.config.MaxFrameSize,
			"error", protocol.ErrFrameTooLarge)
		return
	}

	ev, err := protocol.Decode(s.schema, data)
	if err != nil {
		s.stats.decodeErrors.Add(1)
		s.metrics.RecordDecodeError()
		s.logger.Debug("dropped malformed frame", "error", err)
		return
	}
	if ev.Kind == protocol.KindUnrecognized {
		s.stats.unrecognized.Add(1)
		s.metrics.RecordUnrecognized()
		s.logger.Debug("ignored event", "type", ev.Type)
		return
	}

	_, span := s.tracer.StartEvent(context.Background(), s.schema.Name(), ev)
	err = s.reducer.Apply(ev)
	s.tracer.EndEvent(span, err)

	if err != nil {
		var v *conversation.Violation
		if !errors.As(err, &v) {
			s.logger.Warn("apply failed", "event", ev.Kind.String(), "error", err)
			return
		}
		s.stats.violations.Add(1)
		s.metrics.RecordViolation(v.Kind.String())
		s.logger.Debug("protocol violation",
			"violation", v.Kind.String(),
			"event", v.Event.String(),
			"tool_call_id", v.ToolCallID)
		if v.Kind == conversation.ViolationDraftSuperseded {
			s.stats.draftsAbandoned.Add(1)
			s.metrics.RecordDraftAbandoned(telemetry.ReasonSuperseded)
		}
		if !v.Applied() {
			return
		}
	}

	s.stats.eventsApplied.Add(1)
	s.metrics.RecordEvent(ev.Kind.String())
	if ev.Kind.Terminal() {
		s.logger.Debug("response finished",
			"event", ev.Kind.String(),
			"turns", len(s.reducer.State().History))
	}
	s.armDraftTimer()
	s.publish()
}

// disconnect moves to the disconnected state. Callers hold s.mu.
func (s *Session) disconnect() {
	s.abandonDraft(telemetry.ReasonClosed)
	s.metrics.SetConnected(false)
	s.publish()
}

// abandonDraft discards the draft, if any. Callers hold s.mu.
func (s *Session) abandonDraft(reason string) {
	s.stopDraftTimer()
	if !s.reducer.Abandon() {
		return
	}
	s.stats.draftsAbandoned.Add(1)
	s.metrics.RecordDraftAbandoned(reason)
	s.logger.Warn("discarded unfinished response", "reason", reason)
}

// armDraftTimer restarts the draft timeout while a draft is open.
// Callers hold s.mu.
func (s *Session) armDraftTimer() {
	s.stopDraftTimer()
	if s.config.DraftTimeout <= 0 || s.reducer.Phase() != conversation.PhaseStreaming {
		return
	}
	seq := s.draftSeq
	s.draftTimer = time.AfterFunc(s.config.DraftTimeout, func() {
		s.expireDraft(seq)
	})
}

// stopDraftTimer cancels the pending timeout, including one that has
// already fired but not yet taken s.mu.
func (s *Session) stopDraftTimer() {
	s.draftSeq++
	if s.draftTimer != nil {
		s.draftTimer.Stop()
		s.draftTimer = nil
	}
}

func (s *Session) expireDraft(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.draftSeq {
		return
	}
	s.draftTimer = nil
	if s.reducer.Phase() != conversation.PhaseStreaming {
		return
	}
	s.abandonDraft(telemetry.ReasonTimeout)
	s.publish()
}

// publish stores a fresh snapshot and signals Changes. Callers hold s.mu.
func (s *Session) publish() {
	history, draft := s.reducer.Snapshot()
	s.snapshot.Store(&Snapshot{
		Connected: s.handle != nil,
		History:   history,
		Draft:     draft,
	})
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
