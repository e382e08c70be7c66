package storage

import (
	"context"
	"time"

	"cmdsched/internal/eventbus"
	"cmdsched/internal/executor"
	logx "cmdsched/pkg/logx"
)

// FromOutcome converts an executor outcome into a history record.
func FromOutcome(o executor.Outcome, sinkErr string) Run {
	return Run{
		ID:         o.ID,
		Name:       o.Name,
		Command:    o.Command,
		OK:         o.OK,
		Result:     o.Failure.String(),
		ExitCode:   o.ExitCode,
		Error:      o.Err,
		StartedAt:  o.Started,
		FinishedAt: o.Finished,
		OutputLen:  len(o.Stdout),
		SinkError:  sinkErr,
	}
}

// Recorder appends run.finished events from the bus to a Store.
type Recorder struct {
	st    Store
	log   logx.Logger
	ch    <-chan eventbus.Event
	unsub func()
}

// NewRecorder subscribes immediately so no event published after it returns
// is missed.
func NewRecorder(bus eventbus.Bus, st Store, log logx.Logger) *Recorder {
	ch, unsub := bus.Subscribe(256, eventbus.TypeRunFinished)
	return &Recorder{st: st, log: log, ch: ch, unsub: unsub}
}

// Run consumes events until ctx is done. Write failures are logged and never
// stop the loop.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-r.ch:
			if !ok {
				return nil
			}
			re, ok := ev.Data.(executor.RunEvent)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := r.st.AppendRun(wctx, FromOutcome(re.Outcome, re.SinkErr))
			cancel()
			if err != nil {
				r.log.Warn("run history append failed", logx.String("run_id", re.Outcome.ID), logx.Err(err))
			}
		}
	}
}
