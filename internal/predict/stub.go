package predict

import (
	"context"
	"time"
)

// StubOracle fabricates passes so the whole pipeline can run without a
// prediction server: two passes per satellite, the first two hours out and
// the second six, each fifteen minutes long. Output is a pure function of
// the from time, so repeated refreshes against it are idempotent.
type StubOracle struct{}

// Passes synthesizes the fixed-interval pass pair, clipped to the horizon.
func (StubOracle) Passes(_ context.Context, _ string, from time.Time, horizon time.Duration) ([]Prediction, error) {
	passes := make([]Prediction, 0, 2)
	for i := 0; i < 2; i++ {
		aos := from.Add(time.Duration(2+i*4) * time.Hour)
		if aos.Sub(from) > horizon {
			break
		}
		passes = append(passes, Prediction{
			AOS:          aos,
			LOS:          aos.Add(15 * time.Minute),
			MaxElevation: 45 + float64(i)*10,
		})
	}
	return passes, nil
}
