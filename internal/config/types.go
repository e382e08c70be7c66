package config

import (
	"strings"
	"time"

	logx "cmdsched/pkg/logx"
)

// Config is the on-disk configuration of cmdsched.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Directives is the path of the directive file ("input.txt" by default).
	Directives string `json:"directives,omitempty"`
	// Output is the path of the append-only output log ("output.txt" by default).
	Output string `json:"output,omitempty"`
	// Shell, when set, runs each command through it (e.g. ["/bin/sh", "-c"]).
	Shell []string `json:"shell,omitempty"`
	// Exec sets the child process environment.
	Exec ExecConfig `json:"exec"`

	Logging   LoggingConfig   `json:"logging"`
	Engine    EngineConfig    `json:"engine"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the worker pool.
//
// Defaults (when fields are omitted/zero):
//   - workers: 10
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
type EngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

type ExecConfig struct {
	// Dir is the working directory of every command; empty inherits ours.
	Dir string `json:"dir,omitempty"`
	// Env entries ("KEY=value") are appended to the inherited environment.
	Env []string `json:"env,omitempty"`
	// KillGrace bounds how long output is still drained after a command was
	// killed on shutdown or timeout. Default "2s".
	KillGrace string `json:"kill_grace,omitempty"`
}

type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig selects the run history backend. Nil means disabled.
type StorageConfig struct {
	Driver string `json:"driver"` // none|file|sqlite
	Path   string `json:"path"`

	// BusyTimeout is used by sqlite. Go duration string.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint (e.g. "127.0.0.1:9464"). Empty disables it.
	Addr string `json:"addr,omitempty"`
	Path string `json:"path,omitempty"`
	// Pprof also mounts net/http/pprof on the metrics listener.
	Pprof bool `json:"pprof,omitempty"`
}

const (
	DefaultDirectives = "input.txt"
	DefaultOutput     = "output.txt"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Directives: DefaultDirectives,
		Output:     DefaultOutput,
		Logging:    LoggingConfig{Level: "info", Console: true},
	}
}

// WithDefaults fills empty fields; it never overrides explicit values.
func (c *Config) WithDefaults() *Config {
	if c == nil {
		return Default()
	}
	out := *c
	if strings.TrimSpace(out.Directives) == "" {
		out.Directives = DefaultDirectives
	}
	if strings.TrimSpace(out.Output) == "" {
		out.Output = DefaultOutput
	}
	if strings.TrimSpace(out.Logging.Level) == "" {
		out.Logging.Level = "info"
	}
	if strings.TrimSpace(out.Metrics.Path) == "" {
		out.Metrics.Path = "/metrics"
	}
	return &out
}

func (c *Config) LogxConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// EngineDurations holds the parsed engine durations.
type EngineDurations struct {
	DefaultTimeout time.Duration
	MaxQueueDelay  time.Duration
}

func (c *Config) EngineDurations() (EngineDurations, error) {
	var d EngineDurations
	var err error
	if d.DefaultTimeout, err = ParseDurationField("engine.default_timeout", c.Engine.DefaultTimeout); err != nil {
		return d, err
	}
	if d.MaxQueueDelay, err = ParseDurationField("engine.max_queue_delay", c.Engine.MaxQueueDelay); err != nil {
		return d, err
	}
	return d, nil
}
