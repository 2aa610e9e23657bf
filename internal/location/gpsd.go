package location

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultRetryDelay  = 30 * time.Second

	// gpsd TPV mode 2 is a 2D fix, 3 is a 3D fix.
	modeFix2D = 2
)

// tpvReport is the subset of a gpsd TPV JSON object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// Worker keeps a State current from a gpsd endpoint. It connects,
// enables JSON watch mode, and applies every 2D or 3D TPV report to
// the state. Connection errors trigger a reconnect after a fixed
// delay; the worker exits when the context is cancelled.
type Worker struct {
	Addr        string
	State       *State
	DialTimeout time.Duration
	RetryDelay  time.Duration
	Log         *log.Logger
}

// NewWorker returns a Worker with default timeouts.
func NewWorker(addr string, st *State, logger *log.Logger) *Worker {
	return &Worker{
		Addr:        addr,
		State:       st,
		DialTimeout: defaultDialTimeout,
		RetryDelay:  defaultRetryDelay,
		Log:         logger,
	}
}

// Run ingests fixes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.Log.Printf("location: gpsd %s: %v (retrying in %v)", w.Addr, err, w.RetryDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.RetryDelay):
		}
	}
}

// watch holds one gpsd connection open and applies its TPV stream.
func (w *Worker) watch(ctx context.Context) error {
	d := net.Dialer{Timeout: w.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", w.Addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Unblock the scanner when ctx is cancelled mid-read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return fmt.Errorf("watch command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" || report.Mode < modeFix2D {
			continue
		}
		w.State.Set(Fix{
			Lat:   report.Lat,
			Lon:   report.Lon,
			Alt:   report.Alt,
			Valid: true,
			Time:  time.Now().UTC(),
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return errors.New("stream closed")
}
