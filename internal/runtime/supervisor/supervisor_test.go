package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("boom", func(ctx context.Context) error { panic("boom") })

	err := s.Wait(waitCtx(t, 2*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in boom")
	assert.Equal(t, uint64(1), s.Counters().Panics)
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError())
	s.Go("fails", func(ctx context.Context) error { return errors.New("nope") })
	s.Go("waits", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := s.Wait(waitCtx(t, 2*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails: nope")
	assert.Equal(t, uint64(2), s.Counters().Started)
}

func TestErrorWithoutCancelKeepsOthersRunning(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("fails", func(ctx context.Context) error { return errors.New("nope") })

	require.Eventually(t, func() bool { return s.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, s.Context().Err())
	s.Cancel()
	require.Error(t, s.Wait(waitCtx(t, 2*time.Second)))
}

func TestGoRestartRestartsUntilCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("transient")
		case 2:
			panic("again")
		}
		return nil
	}, WithBackoff(time.Millisecond, 5*time.Millisecond), WithReportErrors())

	err := s.Wait(waitCtx(t, 5*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient")
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, uint64(1), s.Counters().Panics)
}

func TestCancelThenWaitDrains(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.GoRestart("restarting", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("late")
	})
	s.Cancel()
	require.NoError(t, s.Wait(waitCtx(t, 2*time.Second)))
	assert.Equal(t, int64(0), s.Counters().Active)
}
