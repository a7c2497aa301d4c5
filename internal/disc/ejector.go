package disc

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Ejector opens a drive's tray once its disc has been processed.
type Ejector interface {
	Eject(ctx context.Context, device string) error
}

// CommandEjector runs the eject(1) utility against a device node.
type CommandEjector struct {
	Binary  string
	Timeout time.Duration
}

// NewEjector returns a CommandEjector using eject from PATH with a 30s limit.
func NewEjector() *CommandEjector {
	return &CommandEjector{Binary: "eject", Timeout: 30 * time.Second}
}

// Eject opens the tray of device. Drives identified only by a MakeMKV index
// (disc:N) cannot be ejected and report ErrNotEjectable.
func (e *CommandEjector) Eject(ctx context.Context, device string) error {
	if !strings.HasPrefix(device, "/dev/") {
		return fmt.Errorf("eject %q: %w", device, ErrNotEjectable)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	binary := e.Binary
	if binary == "" {
		binary = "eject"
	}
	out, err := exec.CommandContext(ctx, binary, device).CombinedOutput() //nolint:gosec
	if err != nil {
		return fmt.Errorf("eject %s: %w (%s)", device, err, ErrorMessage(out, nil))
	}
	return nil
}
