// Package location tracks the ground station position used for pass
// prediction. The position is either configured statically or kept
// current by a gpsd ingestion worker.
package location

import (
	"sync"
	"time"
)

// Fix is a ground station position report.
type Fix struct {
	Lat   float64 // degrees North
	Lon   float64 // degrees East
	Alt   float64 // meters above sea level
	Valid bool
	Time  time.Time // when the fix was obtained; zero for static positions
}

// State holds the most recent fix, guarded for concurrent access.
// The zero value is an empty state with no valid fix.
type State struct {
	mu  sync.RWMutex
	fix Fix
}

// NewState returns an empty State with no fix.
func NewState() *State {
	return &State{}
}

// Static returns a State pre-seeded with a fixed position, for
// stations without a live GPS feed.
func Static(lat, lon, alt float64) *State {
	return &State{fix: Fix{Lat: lat, Lon: lon, Alt: alt, Valid: true}}
}

// Set replaces the current fix.
func (s *State) Set(f Fix) {
	s.mu.Lock()
	s.fix = f
	s.mu.Unlock()
}

// Current returns the latest fix and whether it is valid.
func (s *State) Current() (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fix, s.fix.Valid
}
