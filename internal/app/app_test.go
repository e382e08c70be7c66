package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"cmdsched/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppRunsDirectives(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	directives := filepath.Join(dir, "input.txt")
	output := filepath.Join(dir, "output.txt")
	cfgPath := filepath.Join(dir, "cmdsched.yaml")

	require.NoError(t, os.WriteFile(directives, []byte(strings.Join([]string{
		"*/1 echo hello",
		"0 0 1 1 1999 echo too-late",
		"not a directive",
		"",
	}, "\n")), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.Join([]string{
		"shell: [/bin/sh, -c]",
		"logging:",
		"  level: error",
		"storage:",
		"  driver: file",
		"  path: " + filepath.Join(dir, "runs.jsonl"),
		"",
	}, "\n")), 0o644))

	a, err := New(Options{ConfigPath: cfgPath, Directives: directives, Output: output, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Config().Engine.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	assert.Equal(t, Summary{Recurring: 1, Stale: 1, Malformed: 1}, a.Summary())

	require.Eventually(t, func() bool {
		b, _ := os.ReadFile(output)
		return string(b) == "hello\n"
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		runs, err := a.store.RecentRuns(context.Background(), 10)
		return err == nil && len(runs) == 1 && runs[0].OK
	}, 5*time.Second, 20*time.Millisecond)

	snap := a.Scheduler().Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "line.1", snap.Schedules[0].Name)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "too-late")
}

func TestAppMissingDirectiveFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Options{
		ConfigPath: filepath.Join(dir, "absent.json"),
		Directives: filepath.Join(dir, "nope.txt"),
		Output:     filepath.Join(dir, "out.txt"),
		LogLevel:   "error",
	})
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read directives")
	require.NoError(t, a.Stop(context.Background(), StopFatalError))
}

func TestOptionsOverrideConfig(t *testing.T) {
	base := config.Default().WithDefaults()
	base.Engine.Workers = 4

	got := Options{Directives: "jobs.txt", Workers: 8, LogLevel: "debug"}.apply(base)
	assert.Equal(t, "jobs.txt", got.Directives)
	assert.Equal(t, config.DefaultOutput, got.Output)
	assert.Equal(t, 8, got.Engine.Workers)
	assert.Equal(t, "debug", got.Logging.Level)
	assert.Equal(t, 4, base.Engine.Workers, "input must not be mutated")

	same := Options{}.apply(base)
	assert.Equal(t, base, same)
}

func TestMapStorageConfig(t *testing.T) {
	_, enabled, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	assert.False(t, enabled)

	sc, enabled, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "runs.db"}})
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}})
	assert.Error(t, err)

	sc, enabled, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "file"}})
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "cmdsched.runs.jsonl", sc.Path)
}

func TestMapEngineConfig(t *testing.T) {
	cfg := &config.Config{Engine: config.EngineConfig{Workers: 3, DefaultTimeout: "1m", MaxQueueDelay: "5s"}}
	ec, err := mapEngineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, ec.Workers)
	assert.Equal(t, time.Minute, ec.DefaultTimeout)
	assert.Equal(t, 5*time.Second, ec.MaxQueueDelay)

	_, err = mapEngineConfig(&config.Config{Engine: config.EngineConfig{DefaultTimeout: "x"}})
	assert.Error(t, err)
}

func TestMapExecutorConfig(t *testing.T) {
	cfg := &config.Config{
		Shell: []string{"/bin/sh", "-c"},
		Exec:  config.ExecConfig{Dir: " /srv/jobs ", Env: []string{"A=1"}, KillGrace: "500ms"},
	}
	ec, err := mapExecutorConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh", "-c"}, ec.Shell)
	assert.Equal(t, "/srv/jobs", ec.Dir)
	assert.Equal(t, []string{"A=1"}, ec.Env)
	assert.Equal(t, 500*time.Millisecond, ec.WaitDelay)

	cfg.Shell[0] = "/bin/bash"
	assert.Equal(t, "/bin/sh", ec.Shell[0], "shell slice must be copied")

	_, err = mapExecutorConfig(&config.Config{Exec: config.ExecConfig{KillGrace: "soon"}})
	assert.Error(t, err)
}
