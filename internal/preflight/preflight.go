package preflight

import (
	"autorip/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// FreeBytes is the space available to the daemon; zero when unknown.
	FreeBytes uint64
}

// RunAll checks every directory the daemon writes to. The output directory
// for the inactive mode is skipped.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Polling.Mode == config.ModeBackup {
		results = append(results, CheckDirectoryAccess("Backup directory", cfg.Paths.BackupDir))
	} else {
		results = append(results, CheckDirectoryAccess("Rip directory", cfg.Paths.RipDir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
