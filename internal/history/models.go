package history

import (
	"time"

	"autorip/internal/disc"
)

// Status is the lifecycle of a journaled run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Entry is one journaled run.
type Entry struct {
	ID         string      `json:"id"`
	Mode       string      `json:"mode"`
	Status     Status      `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Discs      []DiscEntry `json:"discs"`
}

// Duration returns the run length, or zero when it has not finished.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() || e.StartedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// DiscEntry is one disc within a run.
type DiscEntry struct {
	DriveID    string `json:"drive_id"`
	Title      string `json:"title"`
	VolumeName string `json:"volume_name,omitempty"`
	TitleCount int    `json:"title_count"`
	TotalBytes int64  `json:"total_bytes"`
}

func discEntryFromRecord(rec disc.Record) DiscEntry {
	d := DiscEntry{DriveID: rec.DriveID, Title: rec.Title}
	if rec.FileInfo != nil {
		d.VolumeName = rec.FileInfo.VolumeName
		d.TitleCount = len(rec.FileInfo.Titles)
		d.TotalBytes = rec.FileInfo.TotalBytes()
	}
	return d
}
