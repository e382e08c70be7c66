// Package sink appends execution outcomes to the shared output log.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"cmdsched/internal/executor"
)

var ErrClosed = errors.New("sink closed")

// LineSeparator terminates every record line.
var LineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// File serializes records from concurrent workers. Each record is written
// with a single Write under the lock, so records never interleave.
type File struct {
	mu     sync.Mutex
	w      io.Writer
	c      io.Closer
	path   string
	closed bool
}

// Open opens path for appending, creating it and its parent directory when
// missing. Existing content is never truncated.
func Open(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sink: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &File{w: f, c: f, path: path}, nil
}

// New wraps an arbitrary writer. Close does not close w.
func New(w io.Writer) *File { return &File{w: w} }

func (f *File) Path() string { return f.path }

func (f *File) Record(o executor.Outcome) error {
	b := Format(o)
	if len(b) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	_, err := f.w.Write(b)
	return err
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

// Format renders one outcome record. Successful output is re-emitted line by
// line, each line terminated with LineSeparator; empty output yields nothing.
func Format(o executor.Outcome) []byte {
	var sb strings.Builder
	if !o.OK {
		sb.WriteString("Error executing command: ")
		sb.WriteString(o.Command)
		sb.WriteString(", ")
		sb.WriteString(o.Diagnostic())
		sb.WriteString(LineSeparator)
		return []byte(sb.String())
	}
	sc := bufio.NewScanner(strings.NewReader(o.Stdout))
	sc.Buffer(make([]byte, 0, 64*1024), len(o.Stdout)+1)
	for sc.Scan() {
		sb.WriteString(strings.TrimSuffix(sc.Text(), "\r"))
		sb.WriteString(LineSeparator)
	}
	return []byte(sb.String())
}
