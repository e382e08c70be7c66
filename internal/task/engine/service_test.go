package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cmdsched/internal/eventbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, cfg Config, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(cfg, logxNop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestEnqueueRunsTask(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16, eventbus.TypeTaskFinished)
	defer unsub()

	s := startEngine(t, Config{Workers: 2, QueueSize: 4}, bus)

	done := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Name: "once", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	select {
	case ev := <-events:
		te, ok := ev.Data.(TaskEvent)
		require.True(t, ok)
		assert.Equal(t, "once", te.Name)
		assert.NotEmpty(t, te.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no task.finished event")
	}
	require.Eventually(t, func() bool { return s.Snapshot().Completed == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSameNameTasksOverlap(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 3, QueueSize: 8}, nil)

	var running, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, s.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return nil
		}}))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&peak) == 3 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestEnqueueQueueFull(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 1}, nil)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started
	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, s.Enqueue(Task{Name: "queued", Run: noop}))
	err := s.Enqueue(Task{Name: "dropped", Run: noop})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), s.Snapshot().DroppedQueueFull)
}

func TestEnqueueValidationAndStopped(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logxNop(), nil)
	assert.ErrorIs(t, s.Enqueue(Task{Name: "x"}), ErrInvalid)
	assert.ErrorIs(t, s.Enqueue(Task{Run: func(context.Context) error { return nil }}), ErrInvalid)
	assert.ErrorIs(t, s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}), ErrStopped)
}

func TestPanickingTaskKeepsWorkerAlive(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 4}, nil)

	require.NoError(t, s.Enqueue(Task{Name: "panics", Run: func(ctx context.Context) error { panic("bad") }}))
	done := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Name: "after", Run: func(ctx context.Context) error {
		close(done)
		return errors.New("reported")
	}}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
	require.Eventually(t, func() bool { return len(s.Snapshot().History) == 2 }, 2*time.Second, 5*time.Millisecond)
	h := s.Snapshot().History
	assert.Contains(t, h[0].Error, "panic: bad")
	assert.Equal(t, "reported", h[1].Error)
}

func TestDefaultTimeoutCancelsTask(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 1, DefaultTimeout: 20 * time.Millisecond}, nil)
	errCh := make(chan error, 1)
	require.NoError(t, s.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}}))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout not applied")
	}
}
