package scheduler

import (
	"context"
	"strings"
	"time"

	logx "cmdsched/pkg/logx"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

func New(cfg Config, dispatch Dispatcher, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		log:      log,
		clock:    clock.New(),
		dispatch: dispatch,
		ctx:      ctx,
		cancel:   cancel,
		limiters: map[string]*rate.Limiter{},
	}
	for _, o := range opts {
		o(s)
	}
	s.loc = s.loadLocation()
	return s
}

// Location is the zone one-time directives are interpreted in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Stop disarms every timer and waits for trigger goroutines to exit.
// Tasks already enqueued are not affected.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
	}
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
