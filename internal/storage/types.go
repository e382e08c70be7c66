package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Run is one finished command execution.
type Run struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Command    string    `json:"command"`
	OK         bool      `json:"ok"`
	Result     string    `json:"result"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OutputLen  int       `json:"output_len"`
	SinkError  string    `json:"sink_error,omitempty"`
}

func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
