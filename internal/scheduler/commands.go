package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satpass-radio/satpass/internal/catalog"
)

// handleCommand dispatches an incoming command to its handler.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case "schedule":
		o.handleScheduleCommand(ctx, cmd)
	case "cancel":
		o.handleCancelCommand(cmd)
	case "refresh":
		o.handleRefreshCommand(ctx, cmd)
	case "pause":
		o.handlePauseCommand(cmd)
	case "resume":
		o.handleResumeCommand(cmd)
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleScheduleCommand commits a manual recording. No margin is
// applied and the elevation filter does not run; the request flows
// through the same state machine as an automatic commit. Manual
// scheduling works while the scheduler is paused.
func (o *Orchestrator) handleScheduleCommand(ctx context.Context, cmd Command) {
	var payload struct {
		Satellite       string  `json:"satellite"`
		Start           string  `json:"start"`
		DurationMinutes float64 `json:"duration_minutes"`
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: " + err.Error()}
		return
	}
	if o.Registry.ByID(payload.Satellite) == nil {
		cmd.Reply <- CommandResult{OK: false, Error: "unknown satellite: " + payload.Satellite}
		return
	}
	if payload.DurationMinutes <= 0 {
		cmd.Reply <- CommandResult{OK: false, Error: "duration must be positive"}
		return
	}

	now := time.Now().UTC()
	start := now
	if payload.Start != "" {
		parsed, err := time.ParseInLocation(catalog.TimeLayout, payload.Start, time.UTC)
		if err != nil {
			cmd.Reply <- CommandResult{OK: false, Error: fmt.Sprintf("invalid start time %q, want YYYY-MM-DD HH:MM:SS", payload.Start)}
			return
		}
		if parsed.Before(now) {
			cmd.Reply <- CommandResult{OK: false, Error: "start time is in the past"}
			return
		}
		start = parsed
	}

	duration := time.Duration(payload.DurationMinutes * float64(time.Minute))
	rec := ManualRecording(payload.Satellite, start, duration)

	if err := o.commit(ctx, rec); err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: err.Error()}
		return
	}
	cmd.Reply <- CommandResult{
		OK: true,
		Message: fmt.Sprintf("recording scheduled: %s at %s for %s",
			rec.Satellite, rec.Start.Format(catalog.TimeLayout), duration.Truncate(time.Second)),
	}
}

// handleCancelCommand aborts the active session. A recording session
// still walks the finalize path before releasing the receiver.
func (o *Orchestrator) handleCancelCommand(cmd Command) {
	o.mu.Lock()
	cancel := o.sessionCancel
	o.mu.Unlock()

	if cancel == nil {
		cmd.Reply <- CommandResult{OK: false, Error: "no active session"}
		return
	}
	cancel()
	o.Log.Printf("scheduler: session cancel requested by operator")
	cmd.Reply <- CommandResult{OK: true, Message: "session cancel requested"}
}

// handleRefreshCommand forces an immediate catalog refresh.
func (o *Orchestrator) handleRefreshCommand(ctx context.Context, cmd Command) {
	failed, err := o.Catalog.Refresh(ctx, time.Now().UTC())
	if err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "refresh failed: " + err.Error()}
		return
	}

	n := o.Catalog.Size()
	msg := fmt.Sprintf("catalog refreshed, %d candidates", n)
	if failed > 0 {
		msg = fmt.Sprintf("%s (%d satellites failed)", msg, failed)
	}
	cmd.Reply <- CommandResult{OK: true, Message: msg, Candidates: n}
}

func (o *Orchestrator) handlePauseCommand(cmd Command) {
	if o.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already paused"}
		return
	}
	o.paused.Store(true)
	o.Log.Printf("scheduler: paused by operator")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
}

func (o *Orchestrator) handleResumeCommand(cmd Command) {
	if !o.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already running"}
		return
	}
	o.paused.Store(false)
	o.Log.Printf("scheduler: resumed by operator")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
}
