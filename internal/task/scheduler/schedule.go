package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// firstRunSchedule wraps a base schedule and pins the first run time.
// After the first run, it delegates to the base schedule.
type firstRunSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *firstRunSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// makeFixedRateSchedule fires at start, then every interval after the previous
// scheduled time (never after the previous run finished).
//
// cron.Every rounds to whole seconds, which is the scheduler's resolution.
func makeFixedRateSchedule(every time.Duration, start time.Time) cron.Schedule {
	return &firstRunSchedule{base: cron.Every(every), first: start}
}
