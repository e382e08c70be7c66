package app

import (
	"fmt"
	"strings"
	"time"

	"cmdsched/internal/config"
	"cmdsched/internal/executor"
	"cmdsched/internal/observability/metrics"
	"cmdsched/internal/storage"
	"cmdsched/internal/task/engine"
)

// Options are command-line overrides. Zero values keep the config file's value.
type Options struct {
	ConfigPath string
	Directives string
	Output     string
	Workers    int
	LogLevel   string
}

func (o Options) apply(cfg *config.Config) *config.Config {
	out := *cfg
	if s := strings.TrimSpace(o.Directives); s != "" {
		out.Directives = s
	}
	if s := strings.TrimSpace(o.Output); s != "" {
		out.Output = s
	}
	if o.Workers > 0 {
		out.Engine.Workers = o.Workers
	}
	if s := strings.TrimSpace(o.LogLevel); s != "" {
		out.Logging.Level = s
	}
	return &out
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	d, err := cfg.EngineDurations()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Workers:        cfg.Engine.Workers,
		QueueSize:      cfg.Engine.QueueSize,
		DefaultTimeout: d.DefaultTimeout,
		MaxQueueDelay:  d.MaxQueueDelay,
		HistorySize:    cfg.Engine.HistorySize,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		if path == "" {
			path = "cmdsched.runs.jsonl"
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapExecutorConfig(cfg *config.Config) (executor.Config, error) {
	grace, err := config.ParseDurationField("exec.kill_grace", cfg.Exec.KillGrace)
	if err != nil {
		return executor.Config{}, err
	}
	return executor.Config{
		Shell:     append([]string(nil), cfg.Shell...),
		Dir:       strings.TrimSpace(cfg.Exec.Dir),
		Env:       append([]string(nil), cfg.Exec.Env...),
		WaitDelay: grace,
	}, nil
}

func mapMetricsConfig(cfg *config.Config) metrics.ServerConfig {
	return metrics.ServerConfig{Addr: cfg.Metrics.Addr, Path: cfg.Metrics.Path, Pprof: cfg.Metrics.Pprof}
}
