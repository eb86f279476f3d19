package client

import (
	"sync/atomic"
	"time"
)

// StatsSnapshot is a point-in-time copy of a session's counters.
type StatsSnapshot struct {
	// Connection
	Connects        int64
	TransportErrors int64

	// Frames
	FramesReceived int64
	BytesReceived  int64
	StaleFrames    int64
	DecodeErrors   int64

	// Events
	EventsApplied   int64
	Violations      int64
	Unrecognized    int64
	DraftsAbandoned int64

	// Submissions
	SubmitsSent     int64
	SubmitsRejected int64

	// Errors
	HandlerPanics int64

	// Timestamp
	CollectedAt time.Time
}

// stats collects per-session counters. Unlike the Prometheus collectors in
// pkg/telemetry these are always on and scoped to one Session.
type stats struct {
	connects        atomic.Int64
	transportErrors atomic.Int64
	framesReceived  atomic.Int64
	bytesReceived   atomic.Int64
	staleFrames     atomic.Int64
	decodeErrors    atomic.Int64
	eventsApplied   atomic.Int64
	violations      atomic.Int64
	unrecognized    atomic.Int64
	draftsAbandoned atomic.Int64
	submitsSent     atomic.Int64
	submitsRejected atomic.Int64
	handlerPanics   atomic.Int64
}

func (s *stats) recordFrame(n int) {
	s.framesReceived.Add(1)
	s.bytesReceived.Add(int64(n))
}

func (s *stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Connects:        s.connects.Load(),
		TransportErrors: s.transportErrors.Load(),
		FramesReceived:  s.framesReceived.Load(),
		BytesReceived:   s.bytesReceived.Load(),
		StaleFrames:     s.staleFrames.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		EventsApplied:   s.eventsApplied.Load(),
		Violations:      s.violations.Load(),
		Unrecognized:    s.unrecognized.Load(),
		DraftsAbandoned: s.draftsAbandoned.Load(),
		SubmitsSent:     s.submitsSent.Load(),
		SubmitsRejected: s.submitsRejected.Load(),
		HandlerPanics:   s.handlerPanics.Load(),
		CollectedAt:     time.Now(),
	}
}
