package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cmdsched/internal/eventbus"
	logx "cmdsched/pkg/logx"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
)

const stderrKeep = 4 << 10

// Recorder receives every outcome. The result sink implements it.
type Recorder interface {
	Record(o Outcome) error
}

// Config controls how commands are launched.
type Config struct {
	// Shell, when set, runs the literal command as its last argument
	// (e.g. ["/bin/sh", "-c"]). When empty the command is split into argv
	// with shell-style quoting rules and executed directly.
	Shell []string
	Dir   string
	Env   []string
	// WaitDelay bounds how long Wait keeps draining pipes after the
	// process was killed by context cancellation.
	WaitDelay time.Duration
}

// RunEvent is published on the bus after an outcome has been recorded.
type RunEvent struct {
	Outcome Outcome `json:"outcome"`
	SinkErr string  `json:"sink_err,omitempty"`
}

type Option func(*Executor)

func WithBus(bus eventbus.Bus) Option { return func(e *Executor) { e.bus = bus } }

func WithConfig(cfg Config) Option { return func(e *Executor) { e.cfg = cfg } }

type Executor struct {
	cfg Config
	rec Recorder
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time
}

func New(rec Recorder, log logx.Logger, opts ...Option) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Executor{rec: rec, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Job adapts Run to the engine's task signature. The returned function never
// fails: every failure ends up in the recorded outcome.
func (e *Executor) Job(name, command string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		e.RunNamed(ctx, name, command)
		return nil
	}
}

// Run executes command synchronously and records exactly one outcome.
func (e *Executor) Run(ctx context.Context, command string) Outcome {
	return e.RunNamed(ctx, "", command)
}

func (e *Executor) RunNamed(ctx context.Context, name, command string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	o := e.execute(ctx, command)
	o.ID = uuid.NewString()
	o.Name = name

	if o.OK {
		e.log.Info("command executed successfully", logx.String("command", command), logx.Duration("dur", o.Duration()))
	} else {
		e.log.Warn("error executing command", logx.String("command", command), logx.String("diagnostic", o.Diagnostic()), logx.String("failure", o.Failure.String()))
	}

	ev := RunEvent{Outcome: o}
	if e.rec != nil {
		if err := e.rec.Record(o); err != nil {
			// The output log is unavailable; the console is the only channel left.
			ev.SinkErr = err.Error()
			e.log.Error("error writing to output file", logx.String("command", command), logx.Err(err))
		}
	}
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Time: o.Finished, Data: ev})
	}
	return o
}

func (e *Executor) execute(ctx context.Context, command string) Outcome {
	o := Outcome{Command: command, ExitCode: -1, Started: e.now()}
	done := func(f Failure, err error) Outcome {
		o.Finished = e.now()
		o.Failure = f
		if err != nil {
			o.Err = err.Error()
		}
		return o
	}

	argv, err := e.argv(command)
	if err != nil {
		return done(LaunchFailure, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.cfg.Dir
	cmd.WaitDelay = e.cfg.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}
	if len(e.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.cfg.Env...)
	}
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: stderrKeep}
	// exec copies the pipes in its own goroutines and Wait returns only
	// after both are drained, so output is never truncated.
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return done(LaunchFailure, err)
	}
	err = cmd.Wait()
	if stderr.Len() > 0 {
		e.log.Debug("command stderr", logx.String("command", command), logx.String("stderr", stderr.String()))
	}
	if err == nil {
		o.OK = true
		o.ExitCode = 0
		o.Stdout = stdout.String()
		return done(NoFailure, nil)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 && ctx.Err() == nil {
		o.ExitCode = exitErr.ExitCode()
		return done(NonZeroExit, nil)
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("%w (%v)", err, ctx.Err())
	}
	return done(IOFailure, err)
}

func (e *Executor) argv(command string) ([]string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("empty command")
	}
	if len(e.cfg.Shell) > 0 {
		return append(append([]string(nil), e.cfg.Shell...), command), nil
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Len() int       { return len(b.buf) }
func (b *tailBuffer) String() string { return string(b.buf) }
