package history_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"autorip/internal/disc"
	"autorip/internal/history"
	"autorip/internal/poller"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, started time.Time) poller.Run {
	return poller.Run{
		ID:        id,
		Mode:      poller.ModeRip,
		StartedAt: started,
		Discs: []disc.Record{
			{
				DriveID: "/dev/sr0",
				Title:   "Movie A",
				FileInfo: &disc.FileInfo{
					VolumeName: "MOVIE_A",
					Titles: []disc.Title{
						{ID: 0, SizeBytes: 1000},
						{ID: 1, SizeBytes: 500},
					},
				},
			},
			{DriveID: "/dev/sr1", Title: "Unknown Disc"},
		},
	}
}

func TestBeginFinishRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := sampleRun("run-1", started)
	if err := store.Begin(ctx, run); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	entry, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != history.StatusRunning || !entry.FinishedAt.IsZero() {
		t.Fatalf("unexpected running entry: %+v", entry)
	}

	run.FinishedAt = started.Add(90 * time.Minute)
	if err := store.Finish(ctx, run); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	entry, err = store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != history.StatusCompleted || entry.Error != "" {
		t.Fatalf("unexpected completed entry: %+v", entry)
	}
	if entry.Duration() != 90*time.Minute {
		t.Fatalf("duration = %v", entry.Duration())
	}
	if len(entry.Discs) != 2 {
		t.Fatalf("discs = %d", len(entry.Discs))
	}
	first := entry.Discs[0]
	if first.VolumeName != "MOVIE_A" || first.TitleCount != 2 || first.TotalBytes != 1500 {
		t.Fatalf("unexpected first disc: %+v", first)
	}
	if entry.Discs[1].TitleCount != 0 || entry.Discs[1].VolumeName != "" {
		t.Fatalf("unexpected unenriched disc: %+v", entry.Discs[1])
	}
}

func TestFinishRecordsFailureAndInterruption(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()

	failed := sampleRun("failed", now)
	interrupted := sampleRun("interrupted", now.Add(time.Second))
	for _, run := range []poller.Run{failed, interrupted} {
		if err := store.Begin(ctx, run); err != nil {
			t.Fatalf("Begin: %v", err)
		}
	}
	failed.Err = errors.New("read error on title 3")
	interrupted.Err = fmt.Errorf("rip: %w", context.Canceled)
	if err := store.Finish(ctx, failed); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := store.Finish(ctx, interrupted); err != nil {
		t.Fatalf("Finish interrupted: %v", err)
	}

	got, _ := store.Get(ctx, "failed")
	if got.Status != history.StatusFailed || got.Error != "read error on title 3" {
		t.Fatalf("failed entry = %+v", got)
	}
	got, _ = store.Get(ctx, "interrupted")
	if got.Status != history.StatusInterrupted {
		t.Fatalf("interrupted entry = %+v", got)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.Finish(context.Background(), poller.Run{ID: "missing"})
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		if err := store.Begin(ctx, sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Begin: %v", err)
		}
	}

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "run-2" || entries[1].ID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
}

func TestResetInterruptedAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	stale := sampleRun("stale", old)
	done := sampleRun("done", old)
	if err := store.Begin(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := store.Begin(ctx, done); err != nil {
		t.Fatal(err)
	}
	done.FinishedAt = old.Add(time.Hour)
	if err := store.Finish(ctx, done); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetInterrupted(ctx, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("ResetInterrupted = %d, %v", n, err)
	}
	entry, _ := store.Get(ctx, "stale")
	if entry.Status != history.StatusInterrupted {
		t.Fatalf("stale run status = %s", entry.Status)
	}

	removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || removed != 2 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	entries, _ := store.List(ctx, 0)
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(entries))
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestObserverJournalsRuns(t *testing.T) {
	store := openStore(t)
	obs := history.NewObserver(store, nil)
	ctx, cancel := context.WithCancel(context.Background())

	run := sampleRun("observed", time.Now())
	obs.RunStarted(ctx, run)
	cancel()
	run.Err = context.Canceled
	run.FinishedAt = time.Now()
	obs.RunFinished(ctx, run)

	entry, err := store.Get(context.Background(), "observed")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != history.StatusInterrupted {
		t.Fatalf("status = %s", entry.Status)
	}
}
