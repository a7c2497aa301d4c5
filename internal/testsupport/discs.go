package testsupport

import (
	"context"
	"sync"

	"autorip/internal/disc"
)

// Inventory is a concurrency-safe scripted disc inventory.
type Inventory struct {
	mu      sync.Mutex
	discs   []disc.Record
	err     error
	detects int
}

// SetDiscs replaces the discs reported by Detect.
func (f *Inventory) SetDiscs(records ...disc.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discs = append([]disc.Record(nil), records...)
}

// SetError makes Detect fail with err until cleared with nil.
func (f *Inventory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Detects returns how many times Detect ran.
func (f *Inventory) Detects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detects
}

func (f *Inventory) Detect(context.Context) ([]disc.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detects++
	if f.err != nil {
		return nil, f.err
	}
	return append([]disc.Record(nil), f.discs...), nil
}

func (f *Inventory) Enrich(_ context.Context, records []disc.Record) ([]disc.Record, error) {
	out := make([]disc.Record, len(records))
	for i, rec := range records {
		rec.FileInfo = &disc.FileInfo{Name: rec.Title, VolumeName: rec.Title}
		out[i] = rec
	}
	return out, nil
}

// Pipeline records dispatched batches and returns Err for each run.
type Pipeline struct {
	mu      sync.Mutex
	Err     error
	rips    [][]disc.Record
	backups [][]disc.Record
}

func (p *Pipeline) RunRip(_ context.Context, records []disc.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rips = append(p.rips, records)
	return p.Err
}

func (p *Pipeline) RunBackup(_ context.Context, records []disc.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backups = append(p.backups, records)
	return p.Err
}

// Rips returns a copy of the batches routed to RunRip.
func (p *Pipeline) Rips() [][]disc.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]disc.Record(nil), p.rips...)
}

// Backups returns a copy of the batches routed to RunBackup.
func (p *Pipeline) Backups() [][]disc.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]disc.Record(nil), p.backups...)
}
