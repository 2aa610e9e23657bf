// Package scheduler orchestrates the poll-commit-record loop that
// drives the satpass daemon. A polling worker refreshes the pass
// catalog and picks the next qualifying pass; when one is close enough
// it commits a session and a recording worker walks the receiver
// through connect, configure, arm, record and finalize.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satpass-radio/satpass/internal/catalog"
	"github.com/satpass-radio/satpass/internal/profile"
)

// ErrSessionActive reports that the receiver is already owned by a
// scheduled or running recording session.
var ErrSessionActive = errors.New("a recording session is already active")

// PassSource is the catalog view the orchestrator polls.
type PassSource interface {
	Refresh(ctx context.Context, now time.Time) (int, error)
	NextQualifyingPass(now time.Time) (catalog.Candidate, bool)
	Size() int
}

// RadioController is the receiver control surface a session drives.
type RadioController interface {
	Connect(ctx context.Context) error
	ConfigureSatellite(p profile.Profile) error
	StartCapture(path string) error
	StopCapture() error
	Close() error
}

// ProcessSupervisor guarantees the receiver application is up before
// the session connects to it.
type ProcessSupervisor interface {
	EnsureRunning(ctx context.Context) error
}

// Settings are the orchestrator's timing knobs, resolved from config.
type Settings struct {
	CheckInterval time.Duration // polling cadence
	Margin        time.Duration // padding before AOS and after LOS
	SetupLead     time.Duration // how early to connect and configure
	Cooldown      time.Duration // idle time after a failed session
	OutputDir     string        // recording directory for profiles without one
}

// Command is an external control request sent to the orchestrator via
// its Commands channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Candidates int    `json:"candidates,omitempty"`
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	State   State    `json:"state"`
	Paused  bool     `json:"paused"`
	Session *Session `json:"session,omitempty"`
}

const (
	progressInterval = 30 * time.Second
	historyLimit     = 50
)

// Orchestrator owns the session lifecycle. Commits happen only on the
// polling goroutine (both automatic and manual), which is what makes
// the single-session invariant cheap to enforce.
type Orchestrator struct {
	Registry   *profile.Registry
	Catalog    PassSource
	Radio      RadioController
	Supervisor ProcessSupervisor
	Settings   Settings
	Log        *log.Logger

	// Commands receives external commands from HTTP handlers. The
	// polling worker services it between polls.
	Commands chan Command

	paused atomic.Bool

	mu            sync.Mutex
	session       *Session
	sessionCancel context.CancelFunc
	history       []Session

	wg sync.WaitGroup

	transitionCallback func(from, to State, sess Session)
	progressCallback   func(stage string, remaining time.Duration, sess Session)
}

// New creates an orchestrator wired to the given collaborators.
func New(reg *profile.Registry, cat PassSource, radio RadioController, sup ProcessSupervisor, settings Settings, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		Registry:   reg,
		Catalog:    cat,
		Radio:      radio,
		Supervisor: sup,
		Settings:   settings,
		Log:        logger,
		Commands:   make(chan Command, 4),
	}
}

// SetTransitionCallback registers fn, called after every state change.
// Must be set before Run starts.
func (o *Orchestrator) SetTransitionCallback(fn func(from, to State, sess Session)) {
	o.transitionCallback = fn
}

// SetProgressCallback registers fn, called with countdown updates
// while a session waits or records. Must be set before Run starts.
func (o *Orchestrator) SetProgressCallback(fn func(stage string, remaining time.Duration, sess Session)) {
	o.progressCallback = fn
}

// IsPaused reports whether automatic committing is suspended.
func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

// Status reports the orchestrator state and a copy of the current
// session, if any.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: StateIdle, Paused: o.paused.Load()}
	if o.session != nil {
		cp := *o.session
		st.State = cp.State
		st.Session = &cp
	}
	return st
}

// History returns recent sessions, newest first.
func (o *Orchestrator) History() []Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Session, len(o.history))
	for i := range o.history {
		out[i] = o.history[len(o.history)-1-i]
	}
	return out
}

// Run is the polling worker. Every check interval it refreshes the
// catalog, picks the next qualifying pass, and commits a session when
// the pass is close enough. It returns once ctx is cancelled and any
// active recording worker has finished its stop sequence.
func (o *Orchestrator) Run(ctx context.Context) {
	o.Log.Printf("scheduler: polling every %s", o.Settings.CheckInterval)

	for {
		if ctx.Err() != nil {
			break
		}
		o.poll(ctx)
		if o.sleepOrCommand(ctx, o.Settings.CheckInterval) == sleepCancelled {
			break
		}
	}

	// An in-flight session must still drive the finalize path before
	// the daemon exits.
	o.wg.Wait()
}

// poll runs one refresh-and-select cycle.
func (o *Orchestrator) poll(ctx context.Context) {
	now := time.Now().UTC()

	if _, err := o.Catalog.Refresh(ctx, now); err != nil {
		o.Log.Printf("scheduler: catalog refresh: %v (keeping stale catalog)", err)
	}

	if o.paused.Load() {
		return
	}
	if o.sessionInProgress() {
		// One receiver, one channel: a new candidate waits for the
		// next idle poll.
		return
	}

	cand, ok := o.Catalog.NextQualifyingPass(now)
	if !ok {
		return
	}

	rec := FromCandidate(cand, o.Settings.Margin)
	if until := rec.Start.Sub(now); until > o.Settings.CheckInterval {
		o.Log.Printf("scheduler: next pass %s at %s (in %s)",
			rec.Satellite, rec.Start.Format(time.RFC3339), until.Truncate(time.Second))
		return
	}

	if err := o.commit(ctx, rec); err != nil {
		o.Log.Printf("scheduler: commit %s: %v", rec.Satellite, err)
	}
}

// commit takes ownership of the receiver for one recording attempt and
// spawns the recording worker. Only the polling goroutine commits.
func (o *Orchestrator) commit(ctx context.Context, rec ScheduledRecording) error {
	prof := o.Registry.ByID(rec.Satellite)
	if prof == nil {
		return fmt.Errorf("unknown satellite %q", rec.Satellite)
	}

	o.mu.Lock()
	if o.session != nil {
		o.mu.Unlock()
		return ErrSessionActive
	}
	sess := &Session{
		Recording: rec,
		State:     StateScheduled,
		Committed: time.Now().UTC(),
		profile:   prof,
	}
	sctx, cancel := context.WithCancel(ctx)
	o.session = sess
	o.sessionCancel = cancel
	snap := *sess
	o.mu.Unlock()

	o.Log.Printf("scheduler: committed %s: %s to %s (peak %.1f deg)",
		rec.Satellite, rec.Start.Format(time.RFC3339), rec.End.Format(time.RFC3339), rec.MaxElevation)
	o.notifyTransition(StateIdle, StateScheduled, snap)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runSession(sctx, sess)
	}()
	return nil
}

// sessionInProgress reports whether a session currently owns the
// receiver. A failed session keeps ownership through its cool-down.
func (o *Orchestrator) sessionInProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil
}

// runSession is the recording worker: it walks one session through the
// state machine. Session errors never escape; they drive the FAILED
// path and the daemon keeps polling.
func (o *Orchestrator) runSession(ctx context.Context, sess *Session) {
	rec := sess.Recording

	// SCHEDULED: hold until the setup window opens.
	if !o.waitUntil(ctx, rec.Start.Add(-o.Settings.SetupLead), "waiting", sess) {
		o.discard(sess)
		return
	}

	o.transition(sess, StateConnecting)
	if err := o.Supervisor.EnsureRunning(ctx); err != nil {
		if ctx.Err() != nil {
			o.discard(sess)
			return
		}
		o.fail(ctx, sess, fmt.Errorf("receiver process: %w", err), false)
		return
	}
	if err := o.Radio.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			o.discard(sess)
			return
		}
		o.fail(ctx, sess, err, false)
		return
	}

	o.transition(sess, StateConfiguring)
	if err := o.Radio.ConfigureSatellite(*sess.profile); err != nil {
		if ctx.Err() != nil {
			o.closeRadio(sess)
			o.discard(sess)
			return
		}
		o.fail(ctx, sess, err, true)
		return
	}

	// ARMED: configured, waiting for the exact start instant.
	o.transition(sess, StateArmed)
	if !o.waitUntil(ctx, rec.Start, "arming", sess) {
		o.closeRadio(sess)
		o.discard(sess)
		return
	}

	path := o.outputPath(rec, sess.profile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		o.fail(ctx, sess, fmt.Errorf("output dir: %w", err), true)
		return
	}
	o.mu.Lock()
	sess.OutputPath = path
	o.mu.Unlock()

	if err := o.Radio.StartCapture(path); err != nil {
		o.fail(ctx, sess, err, true)
		return
	}
	o.transition(sess, StateRecording)

	// Hold for the pass window. Cancellation and shutdown fall through
	// to the same finalize path: the receiver must never be left
	// believing acquisition is still in progress.
	if !o.waitUntil(ctx, rec.End, "recording", sess) {
		o.markCancelled(sess)
	}

	o.transition(sess, StateFinalizing)
	if err := o.Radio.StopCapture(); err != nil {
		o.Log.Printf("scheduler: %s: stop sequence: %v", rec.Satellite, err)
	}
	o.closeRadio(sess)

	o.transition(sess, StateCompleted)
	o.Log.Printf("scheduler: %s: recording finished: %s", rec.Satellite, path)
	o.retire(sess)
}

// fail drives the FAILED path: log, best-effort disconnect, cool-down,
// then back to idle.
func (o *Orchestrator) fail(ctx context.Context, sess *Session, cause error, disconnect bool) {
	o.mu.Lock()
	sess.Error = cause.Error()
	o.mu.Unlock()

	o.Log.Printf("scheduler: %s: session failed: %v", sess.Recording.Satellite, cause)
	o.transition(sess, StateFailed)
	if disconnect {
		o.closeRadio(sess)
	}

	// Hold the receiver through the cool-down so a broken setup is not
	// hammered on every poll.
	sleepOrCancel(ctx, o.Settings.Cooldown)
	o.retire(sess)
}

// discard ends a session that was cancelled before anything was
// recorded. No terminal transition; the session leaves as it was.
func (o *Orchestrator) discard(sess *Session) {
	o.markCancelled(sess)
	o.Log.Printf("scheduler: %s: session cancelled before recording", sess.Recording.Satellite)
	o.retire(sess)
}

// retire moves the session to history and returns the orchestrator to
// idle.
func (o *Orchestrator) retire(sess *Session) {
	o.mu.Lock()
	if sess.Ended.IsZero() {
		sess.Ended = time.Now().UTC()
	}
	if o.session == sess {
		o.session = nil
		o.sessionCancel = nil
	}
	o.history = append(o.history, *sess)
	if len(o.history) > historyLimit {
		o.history = o.history[len(o.history)-historyLimit:]
	}
	snap := *sess
	o.mu.Unlock()

	o.notifyTransition(snap.State, StateIdle, snap)
}

func (o *Orchestrator) markCancelled(sess *Session) {
	o.mu.Lock()
	sess.Cancelled = true
	o.mu.Unlock()
}

// closeRadio releases the control connection, logging rather than
// propagating close errors.
func (o *Orchestrator) closeRadio(sess *Session) {
	if err := o.Radio.Close(); err != nil {
		o.Log.Printf("scheduler: %s: close: %v", sess.Recording.Satellite, err)
	}
}

// transition records a state change and notifies the callback.
func (o *Orchestrator) transition(sess *Session, to State) {
	o.mu.Lock()
	from := sess.State
	sess.State = to
	if to == StateCompleted || to == StateFailed {
		sess.Ended = time.Now().UTC()
	}
	snap := *sess
	o.mu.Unlock()

	o.Log.Printf("scheduler: %s: %s -> %s", sess.Recording.Satellite, from, to)
	o.notifyTransition(from, to, snap)
}

func (o *Orchestrator) notifyTransition(from, to State, snap Session) {
	if o.transitionCallback != nil {
		o.transitionCallback(from, to, snap)
	}
}

// outputPath names the recording file for a session.
func (o *Orchestrator) outputPath(rec ScheduledRecording, prof *profile.Profile) string {
	dir := prof.OutputDir
	if dir == "" {
		dir = o.Settings.OutputDir
	}
	name := fmt.Sprintf("%s_%s.wav", prof.ID, rec.Start.UTC().Format("20060102T150405Z"))
	return filepath.Join(dir, name)
}

// waitUntil suspends until the deadline passes: a single timer rather
// than a second-granularity loop. An independent reporter announces
// the remaining time while the wait lasts. Returns false if ctx was
// cancelled first.
func (o *Orchestrator) waitUntil(ctx context.Context, deadline time.Time, stage string, sess *Session) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return true
	}

	repCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go o.reportCountdown(repCtx, deadline, stage, sess)

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// reportCountdown emits a progress update immediately and then every
// progress interval until its context is cancelled.
func (o *Orchestrator) reportCountdown(ctx context.Context, deadline time.Time, stage string, sess *Session) {
	if o.progressCallback == nil {
		return
	}
	tick := time.NewTicker(progressInterval)
	defer tick.Stop()
	for {
		o.mu.Lock()
		snap := *sess
		o.mu.Unlock()
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		o.progressCallback(stage, remaining.Truncate(time.Second), snap)

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// sleepResult indicates what ended a sleep period.
type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // a command was received and handled
)

// sleepOrCommand blocks for duration d, until ctx is cancelled, or
// until a command arrives. Commands are handled inline on the polling
// goroutine, which keeps commits single-writer.
func (o *Orchestrator) sleepOrCommand(ctx context.Context, d time.Duration) sleepResult {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return sleepCancelled
	case <-t.C:
		return sleepCompleted
	case cmd := <-o.Commands:
		o.handleCommand(ctx, cmd)
		return sleepInterrupted
	}
}

// sleepOrCancel blocks for duration d or until the context is
// cancelled. Returns true if the sleep completed.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
