package executor

import (
	"fmt"
	"time"
)

// Failure classifies why a run did not succeed.
type Failure int

const (
	NoFailure Failure = iota
	LaunchFailure
	NonZeroExit
	IOFailure
)

func (f Failure) String() string {
	switch f {
	case NoFailure:
		return "success"
	case LaunchFailure:
		return "launch"
	case NonZeroExit:
		return "exit"
	case IOFailure:
		return "io"
	default:
		return fmt.Sprintf("failure(%d)", int(f))
	}
}

// Outcome is the result of one execution.
//
// OK runs carry the full captured stdout. Failed runs carry either a non-zero
// ExitCode (NonZeroExit) or an error message in Err.
type Outcome struct {
	ID       string
	Name     string
	Command  string
	OK       bool
	Failure  Failure
	Stdout   string
	ExitCode int
	Err      string
	Started  time.Time
	Finished time.Time
}

// Diagnostic renders the failure part of an outcome record.
func (o Outcome) Diagnostic() string {
	if o.OK {
		return ""
	}
	if o.Failure == NonZeroExit {
		return fmt.Sprintf("Exit Code: %d", o.ExitCode)
	}
	return "Error: " + o.Err
}

func (o Outcome) Duration() time.Duration { return o.Finished.Sub(o.Started) }
