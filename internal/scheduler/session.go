package scheduler

import (
	"time"

	"github.com/satpass-radio/satpass/internal/catalog"
	"github.com/satpass-radio/satpass/internal/profile"
)

// State identifies a phase of the recording state machine.
type State string

const (
	StateIdle        State = "IDLE"
	StateScheduled   State = "SCHEDULED"
	StateConnecting  State = "CONNECTING"
	StateConfiguring State = "CONFIGURING"
	StateArmed       State = "ARMED"
	StateRecording   State = "RECORDING"
	StateFinalizing  State = "FINALIZING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// Active reports whether a session in this state owns the receiver.
func (s State) Active() bool {
	switch s {
	case StateScheduled, StateConnecting, StateConfiguring, StateArmed, StateRecording, StateFinalizing:
		return true
	}
	return false
}

// ScheduledRecording is a committed recording window: a pass candidate
// padded with the recording margin, or a manual request. It gets one
// execution attempt and is discarded afterwards.
type ScheduledRecording struct {
	Satellite    string    `json:"satellite"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MaxElevation float64   `json:"max_elevation"`
	Manual       bool      `json:"manual"`
}

// Duration is the full recording window length including margins.
func (s ScheduledRecording) Duration() time.Duration { return s.End.Sub(s.Start) }

// FromCandidate pads a catalog candidate with the recording margin on
// both sides of the pass.
func FromCandidate(c catalog.Candidate, margin time.Duration) ScheduledRecording {
	return ScheduledRecording{
		Satellite:    c.Satellite,
		Start:        c.AOS.Add(-margin),
		End:          c.LOS.Add(margin),
		MaxElevation: c.MaxElevation,
	}
}

// ManualRecording builds a window for an operator-requested recording.
// No margin is applied and elevation filtering is bypassed; the peak
// is recorded as 90 degrees.
func ManualRecording(satID string, start time.Time, duration time.Duration) ScheduledRecording {
	return ScheduledRecording{
		Satellite:    satID,
		Start:        start,
		End:          start.Add(duration),
		MaxElevation: 90,
		Manual:       true,
	}
}

// Session tracks one execution attempt of a ScheduledRecording. The
// receiver is a shared, non-shareable resource, so at most one session
// exists at a time; the orchestrator owns it behind its mutex.
type Session struct {
	Recording  ScheduledRecording `json:"recording"`
	State      State              `json:"state"`
	OutputPath string             `json:"output_path,omitempty"`
	Committed  time.Time          `json:"committed"`
	Ended      time.Time          `json:"ended"`
	Error      string             `json:"error,omitempty"`
	Cancelled  bool               `json:"cancelled,omitempty"`

	profile *profile.Profile
}
