// Package catalog maintains the set of predicted satellite passes and
// answers which pass the station should record next. Pass data comes
// from a prediction oracle, is normalized per satellite, and is
// persisted so a restart does not lose the schedule.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/satpass-radio/satpass/internal/predict"
	"github.com/satpass-radio/satpass/internal/profile"
)

// Candidate is one predicted overhead pass of a satellite.
type Candidate struct {
	Satellite    string
	AOS          time.Time
	LOS          time.Time
	MaxElevation float64
}

// Duration is the pass length from AOS to LOS.
func (c Candidate) Duration() time.Duration { return c.LOS.Sub(c.AOS) }

// Catalog holds per-satellite candidate lists, each ordered by AOS.
// Refresh is single-writer (the polling worker); reads are guarded so
// other workers can query concurrently.
type Catalog struct {
	registry *profile.Registry
	oracle   predict.Oracle
	horizon  time.Duration
	path     string
	log      *log.Logger

	mu          sync.RWMutex
	passes      map[string][]Candidate
	lastRefresh time.Time
}

// New returns an empty catalog persisted at path.
func New(reg *profile.Registry, oracle predict.Oracle, horizon time.Duration, path string, logger *log.Logger) *Catalog {
	return &Catalog{
		registry: reg,
		oracle:   oracle,
		horizon:  horizon,
		path:     path,
		log:      logger,
		passes:   make(map[string][]Candidate),
	}
}

// Refresh queries the oracle for every registered satellite and
// replaces each satellite's candidate list with the normalized result.
// A failure for one satellite is logged and skipped; its previous list
// is retained. The merged catalog is persisted afterwards. Returns the
// number of satellites that failed; the error is non-nil only when
// every satellite failed.
func (c *Catalog) Refresh(ctx context.Context, now time.Time) (int, error) {
	total := c.registry.Len()
	fresh := make(map[string][]Candidate, total)
	failed := 0
	var lastErr error

	for _, p := range c.registry.All() {
		preds, err := c.oracle.Passes(ctx, p.ID, now, c.horizon)
		if err != nil {
			failed++
			lastErr = err
			c.log.Printf("catalog: prediction for %s failed: %v", p.ID, err)
			continue
		}
		fresh[p.ID] = normalize(p.ID, preds)
	}

	if total > 0 && failed == total {
		return failed, fmt.Errorf("refresh: all %d satellites failed: %w", total, lastErr)
	}

	c.mu.Lock()
	for id, list := range fresh {
		c.passes[id] = list
	}
	c.lastRefresh = now
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.save(snapshot); err != nil {
		// The in-memory catalog is already updated; persistence failure
		// costs only restart continuity.
		c.log.Printf("catalog: persist failed: %v", err)
	}
	return failed, nil
}

// normalize converts oracle predictions into candidates: passes with
// AOS >= LOS are dropped and the rest are ordered by AOS.
func normalize(satID string, preds []predict.Prediction) []Candidate {
	out := make([]Candidate, 0, len(preds))
	for _, p := range preds {
		if !p.AOS.Before(p.LOS) {
			continue
		}
		out = append(out, Candidate{
			Satellite:    satID,
			AOS:          p.AOS,
			LOS:          p.LOS,
			MaxElevation: p.MaxElevation,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AOS.Before(out[j].AOS) })
	return out
}

// NextQualifyingPass returns the candidate with the smallest AOS among
// those with AOS after now and peak elevation at or above the owning
// profile's minimum. Ties on identical AOS go to the satellite
// registered first. The scan walks each satellite's AOS-ordered list
// to its first qualifying entry, so repeated calls on an unchanged
// catalog return the same candidate.
func (c *Catalog) NextQualifyingPass(now time.Time) (Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best Candidate
	found := false
	for _, p := range c.registry.All() {
		for _, cand := range c.passes[p.ID] {
			if !cand.AOS.After(now) {
				continue
			}
			if cand.MaxElevation < p.MinElevation {
				continue
			}
			if !found || cand.AOS.Before(best.AOS) {
				best, found = cand, true
			}
			break
		}
	}
	return best, found
}

// Upcoming returns every candidate with AOS after now, across all
// satellites, ordered by AOS with registration order breaking ties.
// No elevation filter is applied; callers see the full schedule.
func (c *Catalog) Upcoming(now time.Time) []Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Candidate
	for _, p := range c.registry.All() {
		for _, cand := range c.passes[p.ID] {
			if cand.AOS.After(now) {
				out = append(out, cand)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AOS.Before(out[j].AOS) })
	return out
}

// Size reports the total number of candidates currently held.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, list := range c.passes {
		n += len(list)
	}
	return n
}

// LastRefresh reports when the catalog last refreshed successfully.
// Zero if it never has.
func (c *Catalog) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Snapshot returns a copy of the per-satellite candidate lists.
func (c *Catalog) Snapshot() map[string][]Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Catalog) snapshotLocked() map[string][]Candidate {
	out := make(map[string][]Candidate, len(c.passes))
	for id, list := range c.passes {
		cp := make([]Candidate, len(list))
		copy(cp, list)
		out[id] = cp
	}
	return out
}
