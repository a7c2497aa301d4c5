package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"
)

// Executor runs a command and hands each output line to onLine as it
// arrives. stdout and stderr are interleaved in arrival order.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// maxLineBytes bounds one robot-mode line; MakeMKV's CINFO dumps can be long.
const maxLineBytes = 1 << 20

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	name := filepath.Base(binary)
	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return fmt.Errorf("start %s: %w", name, err)
	}

	waited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waited <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = pr.CloseWithError(scanErr)
		<-waited
		return fmt.Errorf("read %s output: %w", name, scanErr)
	}
	if err := <-waited; err != nil {
		return fmt.Errorf("%s exited: %w", name, err)
	}
	return nil
}
