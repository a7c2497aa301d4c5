package poller

import (
	"fmt"
	"strings"
)

// Phase is the externally observable lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseProcessing:
		return "processing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Mode selects the pipeline entry point a batch is routed to.
type Mode string

const (
	ModeRip    Mode = "rip"
	ModeBackup Mode = "backup"
)

// ParseMode validates a configured mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeRip:
		return ModeRip, nil
	case ModeBackup:
		return ModeBackup, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (want %q or %q)", value, ModeRip, ModeBackup)
	}
}
