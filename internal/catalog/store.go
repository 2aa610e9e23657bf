package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// TimeLayout is the timestamp format used in the persisted catalog and
// in manual scheduling requests. Times are UTC, second granularity.
const TimeLayout = "2006-01-02 15:04:05"

// passRecord is the on-disk form of one pass. The field set predates
// this implementation; keeping it means an operator's existing pass
// file still loads.
type passRecord struct {
	AOS             string  `json:"aos"`
	LOS             string  `json:"los"`
	MaxElevTime     string  `json:"max_elevation_time"`
	MaxElevation    float64 `json:"max_elevation"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// save writes the snapshot atomically via a temp file and rename so
// readers never see a half-written catalog.
func (c *Catalog) save(snapshot map[string][]Candidate) error {
	doc := make(map[string][]passRecord, len(snapshot))
	for id, list := range snapshot {
		records := make([]passRecord, 0, len(list))
		for _, cand := range list {
			records = append(records, recordFromCandidate(cand))
		}
		doc[id] = records
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "passes-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// Load restores the catalog from disk. A missing file is not an error;
// the catalog simply starts empty. A file that cannot be decoded is.
func (c *Catalog) Load() error {
	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	var doc map[string][]passRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode catalog %s: %w", c.path, err)
	}

	loaded := make(map[string][]Candidate, len(doc))
	for id, records := range doc {
		if c.registry.ByID(id) == nil {
			c.log.Printf("catalog: skipping unknown satellite %q in %s", id, c.path)
			continue
		}
		list := make([]Candidate, 0, len(records))
		for i, rec := range records {
			cand, err := rec.candidate(id)
			if err != nil {
				return fmt.Errorf("decode catalog %s: %s pass %d: %w", c.path, id, i, err)
			}
			list = append(list, cand)
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].AOS.Before(list[j].AOS) })
		loaded[id] = list
	}

	c.mu.Lock()
	c.passes = loaded
	c.mu.Unlock()
	return nil
}

func recordFromCandidate(cand Candidate) passRecord {
	aos := cand.AOS.UTC().Truncate(time.Second)
	los := cand.LOS.UTC().Truncate(time.Second)
	// The oracle contract has no peak time, so record the midpoint.
	peak := aos.Add(los.Sub(aos) / 2).Truncate(time.Second)
	minutes := math.Round(los.Sub(aos).Minutes()*100) / 100
	return passRecord{
		AOS:             aos.Format(TimeLayout),
		LOS:             los.Format(TimeLayout),
		MaxElevTime:     peak.Format(TimeLayout),
		MaxElevation:    cand.MaxElevation,
		DurationMinutes: minutes,
	}
}

func (r passRecord) candidate(satID string) (Candidate, error) {
	aos, err := time.ParseInLocation(TimeLayout, r.AOS, time.UTC)
	if err != nil {
		return Candidate{}, fmt.Errorf("aos: %w", err)
	}
	los, err := time.ParseInLocation(TimeLayout, r.LOS, time.UTC)
	if err != nil {
		return Candidate{}, fmt.Errorf("los: %w", err)
	}
	if !aos.Before(los) {
		return Candidate{}, fmt.Errorf("aos %s not before los %s", r.AOS, r.LOS)
	}
	return Candidate{
		Satellite:    satID,
		AOS:          aos,
		LOS:          los,
		MaxElevation: r.MaxElevation,
	}, nil
}
