package ipc

import "time"

// StartRequest begins disc polling.
type StartRequest struct{}

// StartResponse indicates whether polling was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest halts disc polling.
type StopRequest struct{}

// StopResponse indicates whether polling was stopped.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// TrackedDisc is a drive whose disc has already been dispatched.
type TrackedDisc struct {
	DriveID string `json:"drive_id"`
	Title   string `json:"title"`
}

// HistoryDisc is one disc within a journaled run.
type HistoryDisc struct {
	DriveID    string `json:"drive_id"`
	Title      string `json:"title"`
	VolumeName string `json:"volume_name,omitempty"`
	TitleCount int    `json:"title_count"`
	TotalBytes int64  `json:"total_bytes"`
}

// HistoryEntry is a journaled run.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Discs      []HistoryDisc `json:"discs"`
}

// StatusResponse represents combined daemon and poller status.
type StatusResponse struct {
	Running          bool          `json:"running"`
	Polling          bool          `json:"polling"`
	Phase            string        `json:"phase"`
	CurrentOperation string        `json:"current_operation,omitempty"`
	Mode             string        `json:"mode"`
	IntervalSeconds  int           `json:"interval_seconds"`
	LastTransition   time.Time     `json:"last_transition"`
	Tracked          []TrackedDisc `json:"tracked"`
	NetlinkActive    bool          `json:"netlink_active"`
	LastRun          *HistoryEntry `json:"last_run,omitempty"`
	HistoryPath      string        `json:"history_path"`
	LockPath         string        `json:"lock_path"`
	PID              int           `json:"pid"`
}

// ScanRequest asks for an immediate scan cycle.
type ScanRequest struct{}

// ScanResponse reports whether a cycle was started.
type ScanResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// HistoryRequest lists recent runs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains journaled runs, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ShutdownRequest stops the daemon process.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
