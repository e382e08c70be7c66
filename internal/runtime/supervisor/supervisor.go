// Package supervisor runs named goroutines under one cancellable context,
// recovering panics and optionally restarting failed loops.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "cmdsched/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	started atomic.Uint64
	panics  atomic.Uint64
	active  atomic.Int64

	firstErr atomic.Pointer[error]
	wg       sync.WaitGroup
	waitOnce sync.Once
	done     chan struct{}
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the shared context on the first failure of any
// goroutine started with Go.
func WithCancelOnError() Option {
	return func(s *Supervisor) { s.cancelOnErr = true }
}

// Counters is a point-in-time view of goroutine activity.
type Counters struct {
	Active  int64
	Started uint64
	Panics  uint64
}

func New(parent context.Context, opts ...Option) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the shared context and returns immediately.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first recorded failure.
func (s *Supervisor) Err() error {
	if p := s.firstErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Supervisor) Counters() Counters {
	return Counters{Active: s.active.Load(), Started: s.started.Load(), Panics: s.panics.Load()}
}

// Go runs fn once. A non-nil error other than context.Canceled, or a panic,
// is recorded as a failure.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.spawn(name, func(ctx context.Context) {
		s.log.Debug("goroutine started", logx.String("name", name))
		if err := s.call(ctx, name, fn); err != nil && !errors.Is(err, context.Canceled) {
			s.record(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	})
}

// RestartOption configures GoRestart.
type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max     time.Duration
	reportErrors bool
}

// WithBackoff bounds the exponential delay between restarts.
func WithBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithReportErrors makes restart-worthy failures visible through Err.
func WithReportErrors() RestartOption {
	return func(p *restartPolicy) { p.reportErrors = true }
}

// GoRestart runs fn until it returns nil or the context ends, restarting
// after errors and panics. A run that outlives the max backoff resets the
// delay.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second}
	for _, o := range opts {
		o(&p)
	}
	p.max = max(p.max, p.min)

	s.spawn(name, func(ctx context.Context) {
		delay := p.min
		for ctx.Err() == nil {
			began := time.Now()
			err := s.call(ctx, name, fn)
			if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if p.reportErrors {
				s.record(fmt.Errorf("%s: %w", name, err))
			}
			if time.Since(began) >= p.max {
				delay = p.min
			}
			wait := delay + time.Duration(rand.Int63n(int64(delay/5+1)))
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			delay = min(delay*2, p.max)
		}
	})
}

// Wait blocks until every goroutine has returned or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

func (s *Supervisor) spawn(name string, body func(ctx context.Context)) {
	s.started.Add(1)
	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		body(s.ctx)
	}()
}

// call runs fn and converts a panic into an error.
func (s *Supervisor) call(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn(ctx)
}

func (s *Supervisor) record(err error) {
	s.firstErr.CompareAndSwap(nil, &err)
}
