package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cmdsched/internal/directive"
	"cmdsched/internal/eventbus"
	"cmdsched/internal/task/engine"
	logx "cmdsched/pkg/logx"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
)

var (
	ErrStopped  = errors.New("scheduler stopped")
	ErrNoJob    = errors.New("job required")
	ErrBadEntry = errors.New("unsupported directive")
)

// StaleEvent is published when a one-time directive is dropped.
type StaleEvent struct {
	Name    string    `json:"name"`
	Command string    `json:"command"`
	At      time.Time `json:"at"`
}

// FiredEvent is published for every firing handed to the dispatcher.
type FiredEvent struct {
	Name      string    `json:"name"`
	Scheduled time.Time `json:"scheduled"`
	Fire      uint64    `json:"fire"`
}

// Plan computes the trigger plan for e against the scheduler clock. It has no side effects.
func (s *Service) Plan(e directive.Entry) Plan {
	now := s.clock.Now()
	switch e.Kind {
	case directive.KindOneTime:
		d := e.At.Sub(now)
		return Plan{Kind: e.Kind, Delay: d, First: e.At, Stale: d <= 0}
	case directive.KindRecurring:
		return Plan{Kind: e.Kind, Delay: 0, Every: e.Every, First: now}
	default:
		return Plan{Kind: e.Kind}
	}
}

// Register arms the trigger(s) for e. A stale one-time entry is not an error:
// it is logged, reported on the bus, and returned with Plan.Stale set.
func (s *Service) Register(e directive.Entry, job Job) (Plan, error) {
	if job == nil {
		return Plan{}, ErrNoJob
	}
	if s.isStopped() {
		return Plan{}, ErrStopped
	}
	name := strings.TrimSpace(e.Name())

	switch e.Kind {
	case directive.KindOneTime:
		p := s.Plan(e)
		if p.Stale {
			s.log.Info("scheduled time has passed for one-time task; dropping",
				logx.String("schedule", name),
				logx.String("command", e.Command),
				logx.Time("at", e.At),
			)
			s.publish(eventbus.TypeScheduleStale, StaleEvent{Name: name, Command: e.Command, At: e.At})
			return p, nil
		}
		d, err := s.arm(name, e, nil, e.At)
		if err != nil {
			return Plan{}, err
		}
		go s.runOnce(d, s.clock.Timer(p.Delay), job)
		s.log.Debug("schedule registered", logx.String("schedule", name), logx.String("kind", e.Kind.String()), logx.Duration("delay", p.Delay))
		return p, nil

	case directive.KindRecurring:
		if e.Every < time.Minute {
			return Plan{}, fmt.Errorf("%w: interval %s", ErrBadEntry, e.Every)
		}
		p := s.Plan(e)
		sched := makeFixedRateSchedule(e.Every, p.First)
		first := sched.Next(time.Time{})
		d, err := s.arm(name, e, sched, first)
		if err != nil {
			return Plan{}, err
		}
		// Delay 0: the first firing happens as soon as the clock ticks.
		go s.runRecurring(d, s.clock.Timer(0), first, job)
		s.log.Debug("schedule registered", logx.String("schedule", name), logx.String("kind", e.Kind.String()), logx.Duration("every", e.Every))
		return p, nil

	default:
		return Plan{}, fmt.Errorf("%w: kind %v", ErrBadEntry, e.Kind)
	}
}

func (s *Service) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// arm records the schedule and reserves its trigger goroutine in wg. The
// stopped check and wg.Add share one critical section with Stop, so Stop's
// wg.Wait never races a late Add.
func (s *Service) arm(name string, e directive.Entry, sched cron.Schedule, next time.Time) (*scheduleDef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	d := &scheduleDef{name: name, entry: e, sched: sched, next: next}
	s.defs = append(s.defs, d)
	s.wg.Add(1)
	return d, nil
}

func (s *Service) runOnce(d *scheduleDef, tmr *clock.Timer, job Job) {
	defer s.wg.Done()
	select {
	case <-s.ctx.Done():
		tmr.Stop()
		return
	case <-tmr.C:
	}
	d.mu.Lock()
	d.next = time.Time{}
	d.mu.Unlock()
	s.fire(d, d.entry.At, job)
}

func (s *Service) runRecurring(d *scheduleDef, tmr *clock.Timer, at time.Time, job Job) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			tmr.Stop()
			return
		case <-tmr.C:
		}
		// Arm the next firing before dispatching this one so a slow
		// dispatch can never shift the schedule.
		next := d.sched.Next(at)
		tmr = s.clock.Timer(next.Sub(s.clock.Now()))
		d.mu.Lock()
		d.next = next
		d.mu.Unlock()

		s.fire(d, at, job)
		at = next
	}
}

func (s *Service) fire(d *scheduleDef, at time.Time, job Job) {
	d.mu.Lock()
	d.prev = at
	d.fires++
	n := d.fires
	d.mu.Unlock()

	s.publish(eventbus.TypeScheduleFired, FiredEvent{Name: d.name, Scheduled: at, Fire: n})
	if s.dispatch == nil {
		return
	}
	err := s.dispatch.Enqueue(engine.Task{
		Name:      d.name,
		Scheduled: at,
		Run:       job,
	})
	if err != nil {
		s.reportEnqueueError(d.name, err)
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}

// Wait blocks until every trigger goroutine has exited or ctx is done.
// One-time triggers exit after firing; recurring ones only on Stop.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
