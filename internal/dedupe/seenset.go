// Package dedupe suppresses repeat notifications across runs. Polling a fixed
// lookback window every 30 minutes re-reads the same disclosures constantly;
// fingerprints of already-notified records are kept in a SeenSet persisted
// between runs.
package dedupe

import (
	"errors"
	"time"

	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// ErrPersistence indicates the seen set could not be loaded or saved. Fatal
// for the run: losing dedupe state silently is worse than a loud re-notify.
var ErrPersistence = errors.New("seen set persistence failed")

// SeenSet maps fingerprint → first-seen time. Owned exclusively by the
// dedupe stage; read once at run start, written once at run end.
type SeenSet struct {
	entries map[string]time.Time
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{entries: make(map[string]time.Time)}
}

func (s *SeenSet) Len() int { return len(s.entries) }

func (s *SeenSet) Has(fingerprint string) bool {
	_, ok := s.entries[fingerprint]
	return ok
}

// Add records a fingerprint with its first-seen time. An existing entry keeps
// its original timestamp.
func (s *SeenSet) Add(fingerprint string, firstSeen time.Time) {
	if _, ok := s.entries[fingerprint]; ok {
		return
	}
	s.entries[fingerprint] = firstSeen
}

// Entries returns a copy of the underlying map.
func (s *SeenSet) Entries() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Prune evicts fingerprints first seen before now-horizon and returns how
// many were dropped. Callers must keep horizon >= the lookback window or
// in-window duplicates will re-fire.
func (s *SeenSet) Prune(horizon time.Duration, now time.Time) int {
	cutoff := now.Add(-horizon)
	dropped := 0
	for fp, seen := range s.entries {
		if seen.Before(cutoff) {
			delete(s.entries, fp)
			dropped++
		}
	}
	return dropped
}

// FilterNew returns the records whose fingerprints are absent from seen,
// preserving input order, and inserts every returned record's fingerprint
// into seen before returning. Repeats within the batch itself are also
// collapsed to their first occurrence.
func FilterNew(records []model.DealRecord, seen *SeenSet, now time.Time) []model.DealRecord {
	var fresh []model.DealRecord
	for _, rec := range records {
		fp := rec.Fingerprint()
		if seen.Has(fp) {
			continue
		}
		seen.Add(fp, now)
		fresh = append(fresh, rec)
	}
	return fresh
}
