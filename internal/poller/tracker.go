package poller

import (
	"sort"
	"sync"

	"autorip/internal/disc"
)

// tracker records, per drive, the disc already handed to the pipeline. Only
// the scan cycle mutates it; the mutex exists so status readers on other
// goroutines can take snapshots.
type tracker struct {
	mu        sync.RWMutex
	processed map[string]disc.Record
}

func newTracker() *tracker {
	return &tracker{processed: make(map[string]disc.Record)}
}

// prune drops every entry whose drive is absent from detected or now holds a
// different disc. It returns the drive IDs that were released.
func (t *tracker) prune(detected []disc.Record) []string {
	present := make(map[string]disc.Record, len(detected))
	for _, rec := range detected {
		present[rec.DriveID] = rec
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var released []string
	for driveID, handled := range t.processed {
		if current, ok := present[driveID]; !ok || !current.SameDisc(handled) {
			delete(t.processed, driveID)
			released = append(released, driveID)
		}
	}
	sort.Strings(released)
	return released
}

// filterNew returns the records not already handled, preserving order.
func (t *tracker) filterNew(records []disc.Record) []disc.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var fresh []disc.Record
	for _, rec := range records {
		if handled, ok := t.processed[rec.DriveID]; ok && handled.SameDisc(rec) {
			continue
		}
		fresh = append(fresh, rec)
	}
	return fresh
}

// mark keeps only the identifying fields; the title table is not needed to
// recognise the disc again.
func (t *tracker) mark(records []disc.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		t.processed[rec.DriveID] = disc.Record{DriveID: rec.DriveID, Title: rec.Title}
	}
}

// TrackedDisc is one dedup tracker entry.
type TrackedDisc struct {
	DriveID string `json:"drive_id"`
	Title   string `json:"title"`
}

func (t *tracker) snapshot() []TrackedDisc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackedDisc, 0, len(t.processed))
	for driveID, rec := range t.processed {
		out = append(out, TrackedDisc{DriveID: driveID, Title: rec.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriveID < out[j].DriveID })
	return out
}
