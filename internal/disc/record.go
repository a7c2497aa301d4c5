package disc

import (
	"fmt"
	"strings"
)

// UnknownTitle is used when a drive reports a disc without a label.
const UnknownTitle = "Unknown Disc"

// Record describes a disc observed in a drive.
//
// DriveID and Title are populated by the cheap detection pass and are the only
// fields the dedup logic compares. FileInfo is nil until the record has been
// enriched.
type Record struct {
	DriveID   string    `json:"drive_id"`
	Title     string    `json:"title"`
	Index     int       `json:"index"`
	Device    string    `json:"device,omitempty"`
	DriveName string    `json:"drive_name,omitempty"`
	FileInfo  *FileInfo `json:"file_info,omitempty"`
}

// SameDisc reports whether two records describe the same disc in the same drive.
func (r Record) SameDisc(other Record) bool {
	return r.DriveID == other.DriveID && r.Title == other.Title
}

// Enriched reports whether the record carries a title table.
func (r Record) Enriched() bool {
	return r.FileInfo != nil
}

// SourceArg returns the makemkvcon source argument addressing this disc.
func (r Record) SourceArg() string {
	return fmt.Sprintf("disc:%d", r.Index)
}

func (r Record) String() string {
	return fmt.Sprintf("%s (%s)", r.Title, r.DriveID)
}

// FileInfo is the title table of an enriched disc.
type FileInfo struct {
	Type       string   `json:"type,omitempty"`
	Name       string   `json:"name,omitempty"`
	VolumeName string   `json:"volume_name,omitempty"`
	Titles     []Title  `json:"titles"`
	Warnings   []string `json:"warnings,omitempty"`
}

// LongestTitle returns the title with the greatest duration.
func (f *FileInfo) LongestTitle() (Title, bool) {
	if f == nil || len(f.Titles) == 0 {
		return Title{}, false
	}
	best := f.Titles[0]
	for _, title := range f.Titles[1:] {
		if title.Duration > best.Duration {
			best = title
		}
	}
	return best, true
}

// TotalBytes sums the reported size of every title.
func (f *FileInfo) TotalBytes() int64 {
	if f == nil {
		return 0
	}
	var total int64
	for _, title := range f.Titles {
		total += title.SizeBytes
	}
	return total
}

// Title represents a MakeMKV title entry.
type Title struct {
	ID        int     `json:"id"`
	Name      string  `json:"name,omitempty"`
	Duration  int     `json:"duration"`
	Chapters  int     `json:"chapters,omitempty"`
	SizeBytes int64   `json:"size_bytes,omitempty"`
	Playlist  string  `json:"playlist,omitempty"`
	Tracks    []Track `json:"tracks,omitempty"`
}

// NormalizeTitle trims a reported disc label, substituting UnknownTitle for blanks.
func NormalizeTitle(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownTitle
	}
	return label
}
