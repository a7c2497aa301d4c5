package disc

import (
	"fmt"
	"strings"
)

// DriveState is the second field of a MakeMKV DRV line.
type DriveState int

const (
	DriveEmptyClosed DriveState = 0
	DriveEmptyOpen   DriveState = 1
	DriveInserted    DriveState = 2
	DriveLoading     DriveState = 3
	DriveNoDrive     DriveState = 256
)

func (s DriveState) String() string {
	switch s {
	case DriveEmptyClosed:
		return "empty"
	case DriveEmptyOpen:
		return "tray_open"
	case DriveInserted:
		return "inserted"
	case DriveLoading:
		return "loading"
	case DriveNoDrive:
		return "no_drive"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Drive is one DRV line from a makemkvcon drive listing.
type Drive struct {
	Index     int
	State     DriveState
	Flags     int
	DriveName string
	DiscLabel string
	Device    string
}

// HasDisc reports whether the drive holds a readable disc.
func (d Drive) HasDisc() bool {
	return d.State == DriveInserted
}

// ID returns the stable identity of the drive slot: its device node when
// known, otherwise the MakeMKV index.
func (d Drive) ID() string {
	if device := strings.TrimSpace(d.Device); device != "" {
		return device
	}
	return fmt.Sprintf("disc:%d", d.Index)
}

// Record converts a drive with a disc into an unenriched Record.
func (d Drive) Record() Record {
	return Record{
		DriveID:   d.ID(),
		Title:     NormalizeTitle(d.DiscLabel),
		Index:     d.Index,
		Device:    strings.TrimSpace(d.Device),
		DriveName: strings.TrimSpace(d.DriveName),
	}
}

// ParseDrives extracts drive slots from `makemkvcon -r info disc:9999` output.
// Unused slots (no drive name and no device) are skipped.
func ParseDrives(data []byte) []Drive {
	var drives []Drive
	eachRobotLine(data, func(key string, fields []string) {
		if key != "DRV" || len(fields) < 7 {
			return
		}
		index, ok := atoi(fields[0])
		if !ok {
			return
		}
		state, ok := atoi(fields[1])
		if !ok {
			return
		}
		drive := Drive{
			Index:     index,
			State:     DriveState(state),
			DriveName: strings.TrimSpace(fields[4]),
			DiscLabel: strings.TrimSpace(fields[5]),
			Device:    strings.TrimSpace(fields[6]),
		}
		drive.Flags, _ = atoi(fields[3])
		if drive.State == DriveNoDrive || (drive.DriveName == "" && drive.Device == "") {
			return
		}
		drives = append(drives, drive)
	})
	return drives
}
