package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"autorip/internal/config"
)

// Requirement defines an external binary autorip shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Dependency reports the availability of a Requirement.
type Dependency struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Severity classifies a dependency for status output.
func (d Dependency) Severity() string {
	switch {
	case d.Available:
		return "ok"
	case d.Optional:
		return "warn"
	default:
		return "error"
	}
}

// CheckBinaries resolves each requirement against PATH.
func CheckBinaries(requirements []Requirement) []Dependency {
	results := make([]Dependency, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		dep := Dependency{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			dep.Detail = "command not configured"
			results = append(results, dep)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			dep.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, dep)
			continue
		}
		dep.Available = true
		dep.Path = path
		results = append(results, dep)
	}
	return results
}

// SystemRequirements lists the binaries the configured daemon needs. eject is
// required only when discs are ejected after processing.
func SystemRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "MakeMKV",
			Command:     cfg.MakeMKV.Binary,
			Description: "Required for disc detection, rips and backups",
		},
		{
			Name:        "eject",
			Command:     "eject",
			Description: "Ejects discs after a successful run",
			Optional:    !cfg.MakeMKV.EjectAfter,
		},
	}
}

// CheckSystemDeps evaluates SystemRequirements for cfg.
func CheckSystemDeps(cfg *config.Config) []Dependency {
	return CheckBinaries(SystemRequirements(cfg))
}

// MissingRequired counts unavailable non-optional dependencies.
func MissingRequired(deps []Dependency) int {
	missing := 0
	for _, dep := range deps {
		if !dep.Available && !dep.Optional {
			missing++
		}
	}
	return missing
}
