package conversation

import (
	"slices"

	"github.com/vango-dev/chatstream/pkg/protocol"
)

// Phase is the reducer's state machine position.
type Phase uint8

// Phases.
const (
	PhaseIdle Phase = iota
	PhaseStreaming
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	if p == PhaseStreaming {
		return "streaming"
	}
	return "idle"
}

// State is the conversation owned by one session.
type State struct {
	// History is append-only; turns are never modified once added.
	History []Turn

	// Draft is the response currently streaming in, or nil.
	Draft *Turn
}

// Phase returns Streaming when a draft exists.
func (s *State) Phase() Phase {
	if s.Draft != nil {
		return PhaseStreaming
	}
	return PhaseIdle
}

// Reducer folds protocol events into a State.
// It is not safe for concurrent use; callers serialize access.
type Reducer struct {
	state *State
}

// NewReducer returns a reducer over state. A nil state starts empty.
func NewReducer(state *State) *Reducer {
	if state == nil {
		state = &State{}
	}
	return &Reducer{state: state}
}

// State returns the live state. Callers must not mutate it.
func (r *Reducer) State() *State {
	return r.state
}

// Phase returns the current phase.
func (r *Reducer) Phase() Phase {
	return r.state.Phase()
}

// Apply applies one event. It returns nil when the event was accepted or
// ignored (KindUnrecognized) and a *Violation when the event was invalid
// for the current state.
func (r *Reducer) Apply(ev protocol.Event) error {
	s := r.state

	switch ev.Kind {
	case protocol.KindStart:
		superseded := s.Draft != nil
		s.Draft = &Turn{Role: RoleAssistant}
		if superseded {
			return &Violation{Kind: ViolationDraftSuperseded, Event: ev.Kind}
		}
		return nil

	case protocol.KindError:
		// Partial content is dropped, never finalized.
		s.Draft = nil
		s.History = append(s.History, Turn{Role: RoleError, Content: ev.Message, Code: ev.Code})
		return nil

	case protocol.KindContentDelta, protocol.KindContentComplete,
		protocol.KindToolCall, protocol.KindToolResult, protocol.KindEnd:
		if s.Draft == nil {
			return &Violation{Kind: ViolationNoDraft, Event: ev.Kind, ToolCallID: ev.ToolCallID}
		}

	default:
		return nil
	}

	d := s.Draft
	switch ev.Kind {
	case protocol.KindContentDelta, protocol.KindContentComplete:
		d.merge(ev.Content, ev.Fields)

	case protocol.KindToolCall:
		if d.invocation(ev.ToolCallID) != nil {
			return &Violation{Kind: ViolationDuplicateToolCall, Event: ev.Kind, ToolCallID: ev.ToolCallID}
		}
		d.ToolInvocations = append(d.ToolInvocations, ToolInvocation{
			ID:        ev.ToolCallID,
			Name:      ev.ToolName,
			Arguments: slices.Clone(ev.ToolArgs),
		})

	case protocol.KindToolResult:
		inv := d.invocation(ev.ToolCallID)
		if inv == nil {
			return &Violation{Kind: ViolationUnknownToolCall, Event: ev.Kind, ToolCallID: ev.ToolCallID}
		}
		if inv.Resolved {
			return &Violation{Kind: ViolationDuplicateToolResult, Event: ev.Kind, ToolCallID: ev.ToolCallID}
		}
		inv.Result = slices.Clone(ev.ToolResult)
		inv.Resolved = true

	case protocol.KindEnd:
		d.merge(ev.Content, ev.Fields)
		s.History = append(s.History, *d)
		s.Draft = nil
	}
	return nil
}

// AppendUser records a submitted user turn.
func (r *Reducer) AppendUser(text string) {
	r.state.History = append(r.state.History, Turn{Role: RoleUser, Content: text})
}

// Abandon discards the draft, if any, and reports whether one existed.
// It is used when the connection carrying the draft goes away.
func (r *Reducer) Abandon() bool {
	if r.state.Draft == nil {
		return false
	}
	r.state.Draft = nil
	return true
}

// Snapshot returns deep copies of the history and draft.
func (r *Reducer) Snapshot() ([]Turn, *Turn) {
	history := make([]Turn, len(r.state.History))
	for i, t := range r.state.History {
		history[i] = t.Clone()
	}
	var draft *Turn
	if r.state.Draft != nil {
		d := r.state.Draft.Clone()
		draft = &d
	}
	return history, draft
}
