// Package demo lets the daemon, CLI, and dashboard run end-to-end
// without hardware. It ships an in-process practice receiver that
// speaks the same line protocol as the real control endpoint and
// writes real WAV files, plus a fast-forward oracle that always has a
// pass starting moments from now. The scheduler runs unmodified
// against both.
package demo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultSampleRate = 48000

// Receiver is the practice control endpoint. It accepts connections,
// answers every well-formed directive with "RPRT 0", and records a
// synthesized tone to the requested WAV path between RECORD and
// RECORD OFF.
type Receiver struct {
	SampleRate int
	Log        *log.Logger

	ln net.Listener

	mu      sync.Mutex
	rec     *wavFile
	recStop chan struct{}
	recDone chan struct{}
	freqHz  int64
}

// NewReceiver returns a practice receiver that is not yet listening.
func NewReceiver(logger *log.Logger) *Receiver {
	return &Receiver{
		SampleRate: defaultSampleRate,
		Log:        logger,
	}
}

// Listen binds the control endpoint. Call Run afterwards to serve.
func (r *Receiver) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("practice receiver listen: %w", err)
	}
	r.ln = ln
	r.Log.Printf("demo: practice receiver listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address. Valid only after Listen.
func (r *Receiver) Addr() string {
	if r.ln == nil {
		return ""
	}
	return r.ln.Addr().String()
}

// Run serves control connections until ctx is cancelled. Any recording
// still open at shutdown is finalized so the WAV header stays valid.
func (r *Receiver) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		r.ln.Close()
	}()

	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				r.Log.Printf("demo: accept: %v", err)
			}
			if err := r.stopRecording(); err != nil && !errors.Is(err, errNotRecording) {
				r.Log.Printf("demo: finalize on shutdown: %v", err)
			}
			return
		}
		go r.handleConn(ctx, conn)
	}
}

func (r *Receiver) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(conn, "%s\n", r.dispatch(line)); err != nil {
			return
		}
	}
}

// dispatch executes one directive and returns the reply line.
func (r *Receiver) dispatch(line string) string {
	fields := strings.Fields(line)
	switch fields[0] {
	case "F":
		if len(fields) != 2 {
			return "RPRT -1"
		}
		hz, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "RPRT -1"
		}
		r.mu.Lock()
		r.freqHz = hz
		r.mu.Unlock()
		r.Log.Printf("demo: tuned to %d Hz", hz)
		return "RPRT 0"

	case "M", "L":
		return "RPRT 0"

	case "AOS":
		r.Log.Printf("demo: acquisition of signal")
		return "RPRT 0"

	case "LOS":
		// Backstop: a recording left open by a failed RECORD OFF is
		// finalized here rather than leaking a truncated header.
		if err := r.stopRecording(); err == nil {
			r.Log.Printf("demo: recording closed on loss of signal")
		}
		r.Log.Printf("demo: loss of signal")
		return "RPRT 0"

	case "RECORD":
		if line == "RECORD OFF" {
			if err := r.stopRecording(); err != nil {
				r.Log.Printf("demo: stop recording: %v", err)
				return "RPRT -1"
			}
			return "RPRT 0"
		}
		path := strings.TrimSpace(strings.TrimPrefix(line, "RECORD "))
		if path == "" {
			return "RPRT -1"
		}
		if err := r.startRecording(path); err != nil {
			r.Log.Printf("demo: start recording: %v", err)
			return "RPRT -1"
		}
		return "RPRT 0"

	default:
		return "RPRT -1"
	}
}

var errNotRecording = errors.New("no recording in progress")

func (r *Receiver) startRecording(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		return errors.New("recording already in progress")
	}

	w, err := createWAV(path, r.SampleRate)
	if err != nil {
		return err
	}
	r.rec = w
	r.recStop = make(chan struct{})
	r.recDone = make(chan struct{})
	go r.writeTone(w, r.recStop, r.recDone)

	r.Log.Printf("demo: recording to %s", path)
	return nil
}

func (r *Receiver) stopRecording() error {
	r.mu.Lock()
	w, stop, done := r.rec, r.recStop, r.recDone
	r.rec, r.recStop, r.recDone = nil, nil, nil
	r.mu.Unlock()

	if w == nil {
		return errNotRecording
	}
	close(stop)
	<-done
	if err := w.finalize(); err != nil {
		return err
	}
	r.Log.Printf("demo: recording finished, %d audio bytes", w.written)
	return nil
}

// writeTone appends a 1 kHz tone to the recording in quarter-second
// chunks until stopped. The file grows while the pass lasts, the same
// way a live capture would.
func (r *Receiver) writeTone(w *wavFile, stop, done chan struct{}) {
	defer close(done)

	const toneHz = 1000.0
	step := 2 * math.Pi * toneHz / float64(r.SampleRate)
	phase := 0.0
	buf := make([]int16, r.SampleRate/4)

	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			for i := range buf {
				buf[i] = int16(0.3 * math.MaxInt16 * math.Sin(phase))
				phase += step
				if phase > 2*math.Pi {
					phase -= 2 * math.Pi
				}
			}
			if err := w.appendSamples(buf); err != nil {
				r.Log.Printf("demo: tone write: %v", err)
				return
			}
		}
	}
}
