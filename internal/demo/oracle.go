package demo

import (
	"context"
	"log"
	"time"

	"github.com/satpass-radio/satpass/internal/predict"
)

// Oracle predicts one pass per satellite, always starting Lead from
// now. Every refresh moves the pass forward with the clock, so the
// scheduler commits almost immediately and keeps cycling passes for as
// long as the daemon runs.
type Oracle struct {
	Lead   time.Duration // AOS this far from the refresh instant
	Length time.Duration // pass duration
}

// Passes fabricates the imminent pass. The elevation clears every
// built-in profile's threshold.
func (o Oracle) Passes(_ context.Context, _ string, from time.Time, horizon time.Duration) ([]predict.Prediction, error) {
	if o.Lead > horizon {
		return nil, nil
	}
	aos := from.Add(o.Lead)
	return []predict.Prediction{{
		AOS:          aos,
		LOS:          aos.Add(o.Length),
		MaxElevation: 75,
	}}, nil
}

// Supervisor satisfies the scheduler's process check when the practice
// receiver is the target: in-process, there is nothing to launch.
type Supervisor struct {
	Log *log.Logger
}

// EnsureRunning always succeeds.
func (s Supervisor) EnsureRunning(context.Context) error {
	s.Log.Printf("demo: practice receiver is in-process, nothing to launch")
	return nil
}
