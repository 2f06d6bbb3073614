package agent

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

const (
	maxTailLines = 10000
	tailChunk    = 4096
)

// TailLog returns up to n trailing lines of the agent's log file
func (a *Agent) TailLog(n int) ([]string, error) {
	return tailLines(a.config.Logging.File, n)
}

// tailLines reads the file backwards in chunks until it holds more than n
// line breaks, then returns the last n lines
func tailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("lines must be greater than 0")
	}
	if n > maxTailLines {
		return nil, fmt.Errorf("lines cannot exceed %d", maxTailLines)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat log: %w", err)
	}

	var buf []byte
	pos := stat.Size()
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := min(int64(tailChunk), pos)
		pos -= size

		part := make([]byte, size)
		if _, err := f.ReadAt(part, pos); err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		buf = append(part, buf...)
	}

	text := strings.TrimRight(string(buf), "\r\n")
	if text == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines, nil
}
