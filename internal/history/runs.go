package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autorip/internal/poller"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

const runColumns = "id, mode, status, error_message, started_at, finished_at"

// Begin records a dispatched run and its discs as running.
func (s *Store) Begin(ctx context.Context, run poller.Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	return retryOnBusy(ctx, func() error {
		return withTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO runs (id, mode, status, disc_count, started_at) VALUES (?, ?, ?, ?, ?)`,
				run.ID, string(run.Mode), string(StatusRunning), len(run.Discs), formatTime(run.StartedAt),
			); err != nil {
				return fmt.Errorf("insert run: %w", err)
			}
			for i, rec := range run.Discs {
				d := discEntryFromRecord(rec)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO run_discs (run_id, position, drive_id, title, volume_name, title_count, total_bytes)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					run.ID, i, d.DriveID, d.Title, nullString(d.VolumeName), d.TitleCount, d.TotalBytes,
				); err != nil {
					return fmt.Errorf("insert run disc: %w", err)
				}
			}
			return nil
		})
	})
}

// Finish records the outcome of a run previously passed to Begin. A
// cancelled run is journaled as interrupted.
func (s *Store) Finish(ctx context.Context, run poller.Run) error {
	status, message := StatusCompleted, ""
	if run.Err != nil {
		status, message = StatusFailed, run.Err.Error()
		if errors.Is(run.Err, context.Canceled) {
			status = StatusInterrupted
		}
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	n, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), nullString(message), formatTime(finished), run.ID,
	)
	switch {
	case err != nil:
		return fmt.Errorf("finish run: %w", err)
	case n == 0:
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// ResetInterrupted marks runs left running by a previous process as
// interrupted and returns how many were changed.
func (s *Store) ResetInterrupted(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		string(StatusInterrupted), "daemon exited during run", formatTime(now), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted runs: %w", err)
	}
	return n, nil
}

// Prune deletes finished runs that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.exec(ctx,
		`DELETE FROM runs WHERE started_at < ? AND status != ?`,
		formatTime(cutoff), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		discs, err := s.discs(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Discs = discs
	}
	return entries, nil
}

// Get returns a single run.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entry{}, err
	}
	entry.Discs, err = s.discs(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Store) discs(ctx context.Context, runID string) ([]DiscEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT drive_id, title, volume_name, title_count, total_bytes FROM run_discs WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run discs: %w", err)
	}
	defer rows.Close()

	var discs []DiscEntry
	for rows.Next() {
		var (
			d      DiscEntry
			volume sql.NullString
		)
		if err := rows.Scan(&d.DriveID, &d.Title, &volume, &d.TitleCount, &d.TotalBytes); err != nil {
			return nil, err
		}
		d.VolumeName = volume.String
		discs = append(discs, d)
	}
	return discs, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		status      string
		message     sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &entry.Mode, &status, &message, &startedRaw, &finishedRaw); err != nil {
		return Entry{}, err
	}
	entry.Status = Status(status)
	entry.Error = message.String
	entry.StartedAt = parseTime(startedRaw)
	entry.FinishedAt = parseTime(finishedRaw)
	return entry, nil
}
