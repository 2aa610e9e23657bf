package radio

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"syscall"
	"time"
)

// Supervisor makes sure the receiver application is running before the
// scheduler tries to talk to it. It checks by process name and, when the
// process is absent, launches it detached and waits a fixed warm-up so the
// remote-control endpoint has time to come up.
type Supervisor struct {
	ProcessName string
	LaunchCmd   string
	LaunchArgs  []string
	Warmup      time.Duration
	Log         *log.Logger

	// Test seams; nil means the real implementations below are used.
	isRunning func() bool
	launch    func() error
}

// NewSupervisor returns a supervisor for the named receiver process.
// launchCmd may differ from the process name (wrapper scripts, full paths).
func NewSupervisor(processName, launchCmd string, args []string, warmup time.Duration, logger *log.Logger) *Supervisor {
	return &Supervisor{
		ProcessName: processName,
		LaunchCmd:   launchCmd,
		LaunchArgs:  args,
		Warmup:      warmup,
		Log:         logger,
	}
}

// EnsureRunning checks for the receiver process and launches it when absent.
// Launch failures surface immediately and are never retried here; the warm-up
// wait is cancellable through ctx.
func (s *Supervisor) EnsureRunning(ctx context.Context) error {
	if s.running() {
		s.Log.Printf("supervisor: %s already running", s.ProcessName)
		return nil
	}

	s.Log.Printf("supervisor: launching %s", s.LaunchCmd)
	if err := s.start(); err != nil {
		return fmt.Errorf("launch %s: %w", s.LaunchCmd, err)
	}

	t := time.NewTimer(s.Warmup)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	s.Log.Printf("supervisor: %s ready after %s warm-up", s.ProcessName, s.Warmup)
	return nil
}

func (s *Supervisor) running() bool {
	if s.isRunning != nil {
		return s.isRunning()
	}
	// pgrep exits 0 when at least one process matches the exact name.
	return exec.Command("pgrep", "-x", s.ProcessName).Run() == nil
}

func (s *Supervisor) start() error {
	if s.launch != nil {
		return s.launch()
	}

	cmd := exec.Command(s.LaunchCmd, s.LaunchArgs...)
	// New session so the receiver survives daemon restarts and never shares
	// our controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
