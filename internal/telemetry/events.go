// Package telemetry defines the typed events that flow over the
// WebSocket connection between satpassd and its clients. Every event
// carries the shared envelope (type, timestamp, originating component);
// the constructors stamp it so producers cannot forget.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat     EventType = "heartbeat"
	EventState         EventType = "state"
	EventProgress      EventType = "progress"
	EventLog           EventType = "log"
	EventPassScheduled EventType = "pass_scheduled"
	EventSession       EventType = "session"
)

// Event is the envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity
// and monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	Paused        bool   `json:"paused"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewHeartbeat builds a heartbeat event for the app component.
func NewHeartbeat(state string, paused bool, uptime time.Duration) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat, "app"),
		State:         state,
		Paused:        paused,
		UptimeSeconds: int64(uptime.Seconds()),
	}
}

// StateTransition is emitted whenever the orchestrator moves between
// states (e.g. SCHEDULED -> CONNECTING).
type StateTransition struct {
	Event
	From      string `json:"from"`
	To        string `json:"to"`
	Satellite string `json:"satellite,omitempty"`
}

// NewStateTransition builds a state event attributed to the scheduler.
func NewStateTransition(from, to, satellite string) StateTransition {
	return StateTransition{
		Event:     envelope(EventState, "scheduler"),
		From:      from,
		To:        to,
		Satellite: satellite,
	}
}

// Progress reports the countdown of a long-running phase such as the
// wait for AOS or the recording hold.
type Progress struct {
	Event
	Stage            string `json:"stage"`
	Satellite        string `json:"satellite,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Detail           string `json:"detail"`
}

// NewProgress builds a countdown event attributed to the scheduler.
func NewProgress(stage, satellite string, remaining time.Duration, detail string) Progress {
	return Progress{
		Event:            envelope(EventProgress, "scheduler"),
		Stage:            stage,
		Satellite:        satellite,
		RemainingSeconds: int64(remaining.Seconds()),
		Detail:           detail,
	}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewLogLine builds a log event for the given component.
func NewLogLine(component, level, message string) LogLine {
	return LogLine{
		Event:   envelope(EventLog, component),
		Level:   level,
		Message: message,
	}
}

// PassScheduled announces a committed recording window.
type PassScheduled struct {
	Event
	Satellite       string  `json:"satellite"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	MaxElevation    float64 `json:"max_elevation"`
	DurationSeconds int     `json:"duration_s"`
	Manual          bool    `json:"manual"`
}

// NewPassScheduled builds a pass-commit event. Start and end are
// RFC 3339 strings.
func NewPassScheduled(satellite string, start, end time.Time, maxElev float64, manual bool) PassScheduled {
	return PassScheduled{
		Event:           envelope(EventPassScheduled, "scheduler"),
		Satellite:       satellite,
		Start:           start.UTC().Format(time.RFC3339),
		End:             end.UTC().Format(time.RFC3339),
		MaxElevation:    maxElev,
		DurationSeconds: int(end.Sub(start).Seconds()),
		Manual:          manual,
	}
}

// SessionUpdate reports a session reaching a terminal point: completed
// with an output file, failed with an error, or cancelled.
type SessionUpdate struct {
	Event
	Satellite  string `json:"satellite"`
	State      string `json:"state"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// NewSessionUpdate builds a session lifecycle event.
func NewSessionUpdate(satellite, state, outputPath, errMsg string, cancelled bool) SessionUpdate {
	return SessionUpdate{
		Event:      envelope(EventSession, "scheduler"),
		Satellite:  satellite,
		State:      state,
		OutputPath: outputPath,
		Error:      errMsg,
		Cancelled:  cancelled,
	}
}
