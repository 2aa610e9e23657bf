// Package predict defines the pass-prediction oracle the catalog refreshes
// from. Prediction itself is external: the shipped implementations are a
// deterministic stub and a line-protocol client for a prediction server.
// No orbital propagation happens in this codebase.
package predict

import (
	"context"
	"fmt"
	"time"
)

// Prediction is one raw predicted pass as the oracle reports it.
type Prediction struct {
	AOS          time.Time
	LOS          time.Time
	MaxElevation float64
}

// Duration returns the pass length.
func (p Prediction) Duration() time.Duration {
	return p.LOS.Sub(p.AOS)
}

// Oracle answers "when does this satellite pass overhead" for a forward
// horizon. Implementations must return passes ordered by AOS ascending.
type Oracle interface {
	Passes(ctx context.Context, satID string, from time.Time, horizon time.Duration) ([]Prediction, error)
}

// Station is the ground-station position predictions are computed for.
type Station struct {
	Lat float64 // degrees North
	Lon float64 // degrees East
	Alt float64 // meters above sea level
}

// UnavailableError indicates the prediction source could not be reached or
// returned something unusable. Catalog refresh treats it per satellite.
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("prediction source %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
