package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoLog reports that no daemon log exists yet.
var ErrNoLog = errors.New("no daemon log found")

const defaultPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Lines is how many existing lines to print before following.
	Lines  int
	Follow bool
	// Poll is the follow interval; zero uses 250ms.
	Poll time.Duration
	// Match keeps only lines containing this substring, e.g. a run ID.
	Match string
}

// Tail writes the last opts.Lines lines of the log at path to w. With
// Follow it keeps streaming appended lines until ctx ends.
func Tail(ctx context.Context, path string, w io.Writer, opts Options) error {
	target, err := resolve(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if !opts.Follow {
			return fmt.Errorf("%w at %s", ErrNoLog, path)
		}
	}

	var offset int64
	if target != "" {
		var lines []string
		lines, offset, err = readLastLines(target, opts.Lines)
		if err != nil {
			return err
		}
		if err := emit(w, lines, opts.Match); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		current, err := resolve(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		if current != target {
			target, offset = current, 0
		}
		lines, next, err := readForward(target, offset)
		if err != nil {
			return err
		}
		offset = next
		if err := emit(w, lines, opts.Match); err != nil {
			return err
		}
	}
}

func resolve(path string) (string, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("log path %q is a directory", path)
	}
	return target, nil
}

func emit(w io.Writer, lines []string, match string) error {
	for _, line := range lines {
		if match != "" && !strings.Contains(line, match) {
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// readLastLines returns up to limit trailing lines and the offset just past
// the last complete line.
func readLastLines(path string, limit int) ([]string, int64, error) {
	lines, offset, err := readForward(path, 0)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		return nil, offset, nil
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, offset, nil
}

// readForward reads complete lines starting at offset. A trailing partial
// line is left for the next read. A file shorter than offset was truncated
// and is read from the start.
func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}
