package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmdsched/internal/app"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var opts app.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Schedule every directive and stay live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "./cmdsched.yaml", "config file (json, yaml or toml); missing means defaults")
	f.StringVarP(&opts.Directives, "directives", "d", "", "directive file (default input.txt)")
	f.StringVarP(&opts.Output, "output", "o", "", "output log (default output.txt)")
	f.IntVarP(&opts.Workers, "workers", "w", 0, "worker pool size (default 10)")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	return cmd
}

func run(parent context.Context, opts app.Options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	a, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopAppStop
	select {
	case s := <-sigs:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
