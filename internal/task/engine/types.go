package engine

import (
	"context"
	"time"
)

// Config controls the task execution engine.
//
// The scheduler is trigger-only; execution settings belong here.
type Config struct {
	Workers   int
	QueueSize int

	// DefaultTimeout is used when Task.Timeout is 0. 0 disables it.
	DefaultTimeout time.Duration

	// MaxQueueDelay drops tasks that have been queued longer than this duration.
	// 0 disables stale-queue dropping.
	MaxQueueDelay time.Duration

	HistorySize int
}

const (
	defaultWorkers     = 10
	defaultQueueSize   = 256
	defaultHistorySize = 200
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = defaultHistorySize
	}
	return c
}

// Task is a unit of work executed by the engine.
//
// Tasks never gate each other: two tasks with the same Name may run at the
// same time on different workers.
type Task struct {
	ID        string
	Name      string
	Scheduled time.Time
	Timeout   time.Duration
	Run       func(ctx context.Context) error
}

type HistoryItem struct {
	ID         string
	Name       string
	Worker     int
	Scheduled  time.Time
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// TaskEvent is emitted on the event bus for task lifecycle events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Worker     int           `json:"worker"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Workers  int
	QueueLen int
	QueueCap int
	InFlight int

	Dropped          uint64
	DroppedQueueFull uint64
	DroppedStale     uint64
	Completed        uint64

	DefaultTimeout time.Duration
	MaxQueueDelay  time.Duration

	History []HistoryItem
}
