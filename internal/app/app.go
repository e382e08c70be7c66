package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cmdsched/internal/config"
	"cmdsched/internal/directive"
	"cmdsched/internal/eventbus"
	"cmdsched/internal/executor"
	"cmdsched/internal/observability/metrics"
	rtsup "cmdsched/internal/runtime/supervisor"
	"cmdsched/internal/sink"
	"cmdsched/internal/storage"
	"cmdsched/internal/task/engine"
	"cmdsched/internal/task/scheduler"
	logx "cmdsched/pkg/logx"

	"github.com/benbjohnson/clock"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Summary describes what Start registered.
type Summary struct {
	Recurring int
	OneTime   int
	Stale     int
	Malformed int
}

type App struct {
	opts Options
	cfgm *config.ConfigManager
	cfg  *config.Config

	sup  *rtsup.Supervisor
	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	out     *sink.File
	exec    *executor.Executor
	engine  *engine.Service
	sched   *scheduler.Service
	store   storage.Store
	metrics *metrics.Metrics
	msrv    *metrics.Server

	clock   clock.Clock
	summary Summary
}

// New loads configuration and builds every component. Nothing runs until Start.
func New(opts Options) (*App, error) {
	cfgm := config.NewConfigManager(opts.ConfigPath)
	fileCfg, found, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := opts.apply(fileCfg)

	logSvc, log := logx.New(cfg.LogxConfig())
	if !found && strings.TrimSpace(opts.ConfigPath) != "" {
		log.Info("config file not found; using defaults", logx.String("path", opts.ConfigPath))
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	execCfg, err := mapExecutorConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		log.Info("run history enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	out, err := sink.Open(cfg.Output)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	m := metrics.New()
	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		out:     out,
		store:   store,
		metrics: m,
		msrv:    metrics.NewServer(mapMetricsConfig(cfg), m, log),
		clock:   clock.New(),
	}
	a.exec = executor.New(out, log.With(logx.String("comp", "executor")),
		executor.WithConfig(execCfg),
		executor.WithBus(bus),
	)
	a.engine = engine.New(engCfg, log.With(logx.String("comp", "engine")), bus)
	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, a.engine,
		log.With(logx.String("comp", "scheduler")),
		scheduler.WithBus(bus),
		scheduler.WithClock(a.clock),
	)
	return a, nil
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Summary() Summary { return a.summary }

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Engine() *engine.Service { return a.engine }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start brings up the worker pool, reads the directive file and arms one
// trigger per well-formed line. Malformed lines are logged and skipped.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError())

	a.engine.Start(a.sup.Context())

	if a.store != nil {
		rec := storage.NewRecorder(a.bus, a.store, a.log.With(logx.String("comp", "history")))
		a.sup.Go("storage.recorder", rec.Run)
	}
	a.sup.Go("metrics.follow", a.metrics.Follow(a.bus))
	a.msrv.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if err := a.register(); err != nil {
		a.sup.Cancel()
		return err
	}

	if a.cfgm.Path() != "" {
		a.watchConfig()
	}

	a.sup.Go("systemd.watchdog", func(c context.Context) error { return watchdog(c, a.log) })
	sdNotify(a.log, daemon.SdNotifyReady)

	a.log.Info("scheduler started",
		logx.String("directives", a.cfg.Directives),
		logx.String("output", a.cfg.Output),
		logx.Int("recurring", a.summary.Recurring),
		logx.Int("one_time", a.summary.OneTime),
		logx.Int("stale", a.summary.Stale),
		logx.Int("malformed", a.summary.Malformed),
	)
	return nil
}

func (a *App) register() error {
	entries, lineErrs, err := directive.LoadFile(a.cfg.Directives, a.sched.Location())
	if err != nil {
		return fmt.Errorf("read directives: %w", err)
	}
	for _, le := range lineErrs {
		var lerr *directive.LineError
		if errors.As(le, &lerr) {
			a.log.Warn("skipping malformed directive", logx.Int("line", lerr.Line), logx.String("text", lerr.Text), logx.Err(lerr.Err))
		} else {
			a.log.Warn("skipping malformed directive", logx.Err(le))
		}
	}
	a.summary.Malformed = len(lineErrs)

	for _, e := range entries {
		p, err := a.sched.Register(e, a.exec.Job(e.Name(), e.Command))
		if err != nil {
			a.summary.Malformed++
			a.log.Warn("directive rejected", logx.String("schedule", e.Name()), logx.Err(err))
			continue
		}
		switch {
		case p.Stale:
			a.summary.Stale++
		case e.Kind == directive.KindRecurring:
			a.summary.Recurring++
		default:
			a.summary.OneTime++
		}
	}
	a.metrics.SetSchedules(map[directive.Kind]int{
		directive.KindRecurring: a.summary.Recurring,
		directive.KindOneTime:   a.summary.OneTime,
	})
	return nil
}

// watchConfig applies logging changes live. Other sections need a restart
// because schedules are never rebuilt from a running process.
func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfg
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				next = a.opts.apply(next)
				sections := config.Summarize(last, next)
				last = next
				if len(sections) == 0 {
					continue
				}
				for _, s := range sections {
					if s == "logging" {
						if err := a.logs.Apply(next.LogxConfig()); err != nil {
							a.log.Warn("log file unavailable; using console", logx.Err(err))
						}
						continue
					}
					a.log.Warn("config section changed; restart required", logx.String("section", s))
				}
				a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
}

// Stop disarms all triggers, then cancels in-flight commands and closes
// the output log. Each step is bounded so one component cannot stall shutdown.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		err := a.closeResources()
		_ = a.logs.Close()
		return err
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	step := func(name string, max time.Duration, fn func(context.Context)) {
		start := time.Now()
		c, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		fn(c)
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 2*time.Second, a.sched.Stop)
	a.sup.Cancel()
	step("engine", 3*time.Second, a.engine.Stop)
	step("metrics", time.Second, a.msrv.Stop)
	step("supervisor", 2*time.Second, func(c context.Context) {
		if err := a.sup.Wait(c); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("supervisor exited with error", logx.Err(err), logx.Int("active", int(a.sup.Counters().Active)))
		}
	})

	err := a.closeResources()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

func (a *App) closeResources() error {
	var errs []error
	if a.out != nil {
		errs = append(errs, a.out.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
