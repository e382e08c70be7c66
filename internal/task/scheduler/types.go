package scheduler

import (
	"context"
	"sync"
	"time"

	"cmdsched/internal/directive"
	"cmdsched/internal/eventbus"
	"cmdsched/internal/task/engine"
	logx "cmdsched/pkg/logx"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// Config controls the scheduler (trigger) service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"; empty means local
}

// Dispatcher accepts one unit of work per firing. *engine.Service implements it.
type Dispatcher interface {
	Enqueue(t engine.Task) error
}

// Job runs one firing of a directive.
type Job func(ctx context.Context) error

// Plan describes how a directive will be triggered.
type Plan struct {
	Kind  directive.Kind
	Delay time.Duration // until the first firing
	Every time.Duration // recurring only
	First time.Time
	Stale bool // one-time target already passed; nothing is armed
}

type scheduleDef struct {
	name  string
	entry directive.Entry
	sched cron.Schedule // nil for one-time

	mu    sync.Mutex
	next  time.Time
	prev  time.Time
	fires uint64
}

type Option func(*Service)

// WithClock replaces the wall clock. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

type Service struct {
	mu sync.Mutex

	log      logx.Logger
	cfg      Config
	loc      *time.Location
	bus      eventbus.Bus
	clock    clock.Clock
	dispatch Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guarded by mu. Once set, no trigger goroutine may join wg.
	stopped bool
	defs    []*scheduleDef

	// Enqueue error throttling: key is schedule name.
	enqMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

type ScheduleInfo struct {
	Name      string
	Kind      directive.Kind
	Directive string
	Command   string
	Next      time.Time
	Prev      time.Time
	Fires     uint64
}

type Snapshot struct {
	Timezone  string
	Schedules []ScheduleInfo
}
