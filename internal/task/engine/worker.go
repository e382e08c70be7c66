package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"cmdsched/internal/eventbus"
	logx "cmdsched/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedTask, idx int) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qt, ok := <-queue:
			if !ok {
				return
			}
			atomic.AddInt32(&s.inFlight, 1)
			s.execOne(ctx, qt, idx)
			atomic.AddInt32(&s.inFlight, -1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask, idx int) {
	start := time.Now()
	queueDelay := start.Sub(qt.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}

	s.mu.Lock()
	maxDelay := s.cfg.MaxQueueDelay
	s.mu.Unlock()

	item := HistoryItem{ID: qt.task.ID, Name: qt.task.Name, Worker: idx, Scheduled: qt.task.Scheduled, Started: start, QueueDelay: queueDelay}

	if maxDelay > 0 && queueDelay > maxDelay {
		s.onStaleDropped(start, qt.task, queueDelay)
		item.Error = "stale_queue_delay"
		s.appendHistory(item)
		return
	}

	s.log.Debug("task.started", logx.String("task", qt.task.Name), logx.Int("worker", idx), logx.Duration("queue_delay", queueDelay))
	s.publish(eventbus.TypeTaskStarted, start, TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Worker: idx, Started: start, QueueDelay: queueDelay})

	runCtx := ctx
	cancel := func() {}
	if qt.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, qt.timeout)
	}
	// A panicking task must not kill the worker.
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("task.panic", logx.String("task", qt.task.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		err = qt.task.Run(runCtx)
	}()
	cancel()

	item.Duration = time.Since(start)
	ev := TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Worker: idx, Started: start, QueueDelay: queueDelay, Duration: item.Duration}
	if err != nil {
		item.Error = err.Error()
		ev.Error = item.Error
		s.log.Warn("task.failed", logx.String("task", qt.task.Name), logx.Err(err), logx.Duration("dur", item.Duration))
		s.publish(eventbus.TypeTaskFailed, time.Now(), ev)
	} else {
		s.log.Debug("task.completed", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay), logx.Duration("dur", item.Duration))
		s.publish(eventbus.TypeTaskFinished, time.Now(), ev)
	}
	atomic.AddUint64(&s.completed, 1)
	s.appendHistory(item)
}
