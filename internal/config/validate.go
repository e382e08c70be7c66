package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values that the strict decoder cannot.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 0"))
	}
	if c.Engine.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("engine.queue_size must be >= 0"))
	}
	if c.Engine.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("engine.history_size must be >= 0"))
	}
	if _, err := c.EngineDurations(); err != nil {
		errs = append(errs, err)
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := ParseDurationField("exec.kill_grace", c.Exec.KillGrace); err != nil {
		errs = append(errs, err)
	}
	for i, kv := range c.Exec.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("exec.env[%d]: want KEY=value, got %q", i, kv))
		}
	}
	for i, s := range c.Shell {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("shell[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// Summarize lists the sections that differ between two configs, for logging.
func Summarize(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
	}
	if oldCfg.Engine != newCfg.Engine {
		changed = append(changed, "engine")
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if derefStorage(oldCfg.Storage) != derefStorage(newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if oldCfg.Exec.Dir != newCfg.Exec.Dir || oldCfg.Exec.KillGrace != newCfg.Exec.KillGrace ||
		strings.Join(oldCfg.Exec.Env, "\x00") != strings.Join(newCfg.Exec.Env, "\x00") {
		changed = append(changed, "exec")
	}
	if oldCfg.Directives != newCfg.Directives || oldCfg.Output != newCfg.Output ||
		strings.Join(oldCfg.Shell, "\x00") != strings.Join(newCfg.Shell, "\x00") {
		changed = append(changed, "paths")
	}
	return changed
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

// ParseDurationField parses a Go duration string found at path. Empty means 0.
// Negative durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for 0.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
