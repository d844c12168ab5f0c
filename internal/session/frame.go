package session

import (
	"fmt"
	"image"
	"time"
)

// Frame is one captured image plus its monotonic sequence number and
// capture timestamp. Owned exclusively by the stage processing it.
type Frame struct {
	Seq   uint64
	Time  time.Time
	Image image.Image
}

// DecisionKind is the dedup outcome for one frame.
type DecisionKind int

const (
	Kept DecisionKind = iota
	Discarded
)

// String returns the outcome name for logs and wire messages.
func (k DecisionKind) String() string {
	if k == Kept {
		return "kept"
	}
	return "discarded"
}

// Decision reports what happened to one frame. MatchSeq and Score are
// set when the frame duplicated a kept record; Err is set when a keep
// was abandoned by a persistence failure or an invariant violation.
type Decision struct {
	Kind     DecisionKind
	MatchSeq uint64
	Score    float64
	Path     string
	Err      error
}

// Status is the terminal (or running) state of a session.
type Status int

const (
	Running Status = iota
	Completed
	Cancelled
	Failed
)

var statusNames = map[Status]string{
	Running:   "running",
	Completed: "completed",
	Cancelled: "cancelled",
	Failed:    "failed",
}

// String returns the status name.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText lets Status serialize as its name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// State is the mutable per-run progress, owned by the scheduler.
// Captured == Kept + Discarded holds at every observation point after
// a decision is finalized.
type State struct {
	Status    Status        `json:"status"`
	Elapsed   time.Duration `json:"elapsed"`
	Attempted int           `json:"frames_attempted"`
	Captured  int           `json:"frames_captured"`
	Kept      int           `json:"frames_kept"`
	Discarded int           `json:"frames_discarded"`
}

// TickError records a recoverable failure on one tick.
type TickError struct {
	Tick int
	Err  error
}

// Result is the final outcome of a run.
type Result struct {
	Status          Status
	FramesCaptured  int
	FramesKept      int
	FramesDiscarded int
	Errors          []TickError
}

// Reporter observes scheduler and pipeline progress. Implemented by
// the presentation layer; the core calls, never interprets.
type Reporter interface {
	OnTick(state State)
	OnDecision(frame Frame, decision Decision)
	OnSessionEnd(result Result)
}

// NopReporter discards all notifications.
type NopReporter struct{}

func (NopReporter) OnTick(State)               {}
func (NopReporter) OnDecision(Frame, Decision) {}
func (NopReporter) OnSessionEnd(Result)        {}
