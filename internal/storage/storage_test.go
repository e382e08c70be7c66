package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cmdsched/internal/eventbus"
	"cmdsched/internal/executor"
	logx "cmdsched/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(i int) Run {
	return Run{
		ID:         fmt.Sprintf("run-%d", i),
		Name:       fmt.Sprintf("line.%d", i),
		Command:    "echo hi",
		OK:         i%2 == 0,
		Result:     "success",
		ExitCode:   0,
		StartedAt:  t0.Add(time.Duration(i) * time.Minute),
		FinishedAt: t0.Add(time.Duration(i)*time.Minute + time.Second),
		OutputLen:  3,
	}
}

func openDriver(t *testing.T, driver string) Store {
	t.Helper()
	ext := map[string]string{"file": "runs.jsonl", "sqlite": "runs.db"}[driver]
	st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "state", ext), BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)
	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}

func TestStoreDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			st := openDriver(t, driver)
			ctx := context.Background()

			got, err := st.RecentRuns(ctx, 5)
			require.NoError(t, err)
			assert.Empty(t, got)

			for i := 1; i <= 7; i++ {
				require.NoError(t, st.AppendRun(ctx, sampleRun(i)))
			}

			got, err = st.RecentRuns(ctx, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "run-7", got[0].ID)
			assert.Equal(t, "run-5", got[2].ID)
			assert.True(t, got[2].StartedAt.Equal(sampleRun(5).StartedAt))
			assert.Equal(t, time.Second, got[0].Duration())

			got, err = st.RecentRuns(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, got, 7)

			got, err = st.RecentRuns(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileStoreSkipsTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.AppendRun(ctx, sampleRun(1)))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, _ = f.WriteString(`{"id":"torn"` + "\n")
	require.NoError(t, f.Close())

	require.NoError(t, st.AppendRun(ctx, sampleRun(2)))
	got, err := st.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].ID)
}

func TestFileStoreClosed(t *testing.T) {
	st := openDriver(t, "file")
	require.NoError(t, st.Close())
	assert.True(t, errors.Is(st.AppendRun(context.Background(), sampleRun(1)), ErrClosed))
}

func TestRecorderAppendsRunEvents(t *testing.T) {
	bus := eventbus.New()
	st := openDriver(t, "file")
	rec := NewRecorder(bus, st, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	o := executor.Outcome{ID: "abc", Name: "line.1", Command: "false", Failure: executor.NonZeroExit, ExitCode: 1, Started: t0, Finished: t0.Add(time.Second)}
	bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: executor.RunEvent{Outcome: o, SinkErr: "disk full"}})
	bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: "ignored"})

	require.Eventually(t, func() bool {
		got, err := st.RecentRuns(context.Background(), 5)
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	got, err := st.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "abc", got[0].ID)
	assert.Equal(t, "exit", got[0].Result)
	assert.Equal(t, 1, got[0].ExitCode)
	assert.Equal(t, "disk full", got[0].SinkError)
	assert.False(t, got[0].OK)
}
