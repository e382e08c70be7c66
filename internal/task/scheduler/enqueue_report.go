package scheduler

import (
	"time"

	logx "cmdsched/pkg/logx"

	"golang.org/x/time/rate"
)

const enqueueWarnThrottle = 5 * time.Second

func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	s.enqMu.Lock()
	lim := s.limiters[name]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(enqueueWarnThrottle), 1)
		s.limiters[name] = lim
	}
	s.enqMu.Unlock()

	// Queue full / stopping are important but can be bursty.
	if !lim.Allow() {
		return
	}
	s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
}
