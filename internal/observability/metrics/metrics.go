// Package metrics exposes cmdsched counters in the Prometheus format.
package metrics

import (
	"context"

	"cmdsched/internal/directive"
	"cmdsched/internal/eventbus"
	"cmdsched/internal/executor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "cmdsched"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	schedules   *prometheus.GaugeVec
	stale       prometheus.Counter
	sinkErrors  prometheus.Counter
	dropped     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished command runs by result (success, exit, launch, io).",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of command runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
		}),
		schedules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedules",
			Help:      "Registered schedules by kind.",
		}, []string{"kind"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_total",
			Help:      "One-time directives dropped because their time had passed.",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Outcomes that could not be written to the output log.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Firings dropped by the worker pool (queue full or stale).",
		}),
	}
	m.Registry.MustRegister(
		m.runs, m.runDuration, m.schedules, m.stale, m.sinkErrors, m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SetSchedules records how many entries of each kind are armed.
func (m *Metrics) SetSchedules(counts map[directive.Kind]int) {
	for _, k := range []directive.Kind{directive.KindOneTime, directive.KindRecurring} {
		m.schedules.WithLabelValues(k.String()).Set(float64(counts[k]))
	}
}

// Observe applies one bus event to the collectors.
func (m *Metrics) Observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeRunFinished:
		re, ok := ev.Data.(executor.RunEvent)
		if !ok {
			return
		}
		m.runs.WithLabelValues(re.Outcome.Failure.String()).Inc()
		m.runDuration.Observe(re.Outcome.Duration().Seconds())
		if re.SinkErr != "" {
			m.sinkErrors.Inc()
		}
	case eventbus.TypeScheduleStale:
		m.stale.Inc()
	case eventbus.TypeTaskDropped:
		m.dropped.Inc()
	}
}

// Follow subscribes to the bus right away and returns a loop that feeds
// Observe until ctx is done.
func (m *Metrics) Follow(bus eventbus.Bus) func(ctx context.Context) error {
	ch, unsub := bus.Subscribe(256, eventbus.TypeRunFinished, eventbus.TypeScheduleStale, eventbus.TypeTaskDropped)
	return func(ctx context.Context) error {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				m.Observe(ev)
			}
		}
	}
}
