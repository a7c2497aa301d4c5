package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"autorip/internal/daemonctl"
	"autorip/internal/ipc"
	"autorip/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.Und)

// displayLabel turns identifiers like "tray_open" into "Tray Open".
func displayLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return "-"
	}
	return titleCaser.String(value)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func daemonLines(st ipc.StatusResponse, colorize bool) []string {
	var lines []string
	if !st.Running {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (run `autorip start`)", colorize))
		lines = append(lines, renderStatusLine("Mode", statusInfo, displayLabel(st.Mode), colorize))
		return lines
	}
	lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize))

	pollKind, pollDetail := statusWarn, "Stopped (run `autorip start`)"
	if st.Polling {
		pollKind, pollDetail = statusOK, fmt.Sprintf("Every %s", time.Duration(st.IntervalSeconds)*time.Second)
	}
	lines = append(lines, renderStatusLine("Polling", pollKind, pollDetail, colorize))

	phase := displayLabel(st.Phase)
	if !st.LastTransition.IsZero() {
		phase = fmt.Sprintf("%s (since %s)", phase, st.LastTransition.Local().Format(time.DateTime))
	}
	lines = append(lines, renderStatusLine("Phase", statusInfo, phase, colorize))
	lines = append(lines, renderStatusLine("Mode", statusInfo, displayLabel(st.Mode), colorize))

	if st.NetlinkActive {
		lines = append(lines, renderStatusLine("Disc Detection", statusOK, "Polling + udev events", colorize))
	} else {
		lines = append(lines, renderStatusLine("Disc Detection", statusInfo, "Polling only", colorize))
	}
	return lines
}

func trackedLines(tracked []ipc.TrackedDisc, colorize bool) []string {
	if len(tracked) == 0 {
		return []string{renderStatusLine("Tracked", statusInfo, "No discs handled since they were inserted", colorize)}
	}
	lines := make([]string, 0, len(tracked))
	for _, t := range tracked {
		lines = append(lines, renderStatusLine(t.DriveID, statusInfo, t.Title, colorize))
	}
	return lines
}

func lastRunLine(run *ipc.HistoryEntry, colorize bool) string {
	if run == nil {
		return renderStatusLine("Last Run", statusInfo, "None recorded", colorize)
	}
	kind := statusOK
	switch run.Status {
	case "failed":
		kind = statusError
	case "interrupted":
		kind = statusWarn
	case "running":
		kind = statusInfo
	}
	detail := fmt.Sprintf("%s %s of %s at %s", displayLabel(run.Status), run.Mode, historyDiscTitles(run.Discs),
		run.StartedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		detail += ": " + run.Error
	}
	return renderStatusLine("Last Run", kind, detail, colorize)
}

func dependencyLines(deps []preflight.Dependency, colorize bool) []string {
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			lines = append(lines, renderStatusLine(dep.Name, statusOK, fmt.Sprintf("Ready (%s)", dep.Path), colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity()), detail, colorize))
	}
	return lines
}

func directoryLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusError
		if r.Passed {
			kind = statusOK
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func renderStatus(w io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	section := func(title string, lines []string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(w, line)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	system := daemonLines(snap.Daemon, colorize)
	system = append(system, lastRunLine(snap.Daemon.LastRun, colorize))
	if snap.Notifications {
		system = append(system, renderStatusLine("Notifications", statusOK, "Configured", colorize))
	} else {
		system = append(system, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
	}
	section("System Status", system)
	if snap.Daemon.Running {
		section("Tracked Discs", trackedLines(snap.Daemon.Tracked, colorize))
	}
	section("Dependencies", dependencyLines(snap.Dependencies, colorize))
	section("Directories", directoryLines(snap.Directories, colorize))
}
