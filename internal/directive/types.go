package directive

import (
	"fmt"
	"time"
)

// Kind tags the two schedule variants.
type Kind int

const (
	KindOneTime Kind = iota
	KindRecurring
)

func (k Kind) String() string {
	switch k {
	case KindOneTime:
		return "once"
	case KindRecurring:
		return "every"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one parsed directive.
//
// At is set only for KindOneTime (seconds are always zero).
// Every is set only for KindRecurring (whole minutes, >= 1).
// Entries are plain values: two parses of the same line compare equal.
type Entry struct {
	Kind    Kind
	At      time.Time
	Every   time.Duration
	Command string
	Line    int
}

// Name is a stable identifier used for logs and schedule bookkeeping.
func (e Entry) Name() string {
	if e.Line > 0 {
		return fmt.Sprintf("line.%d", e.Line)
	}
	return e.String()
}

// String renders the entry back into directive syntax.
func (e Entry) String() string {
	switch e.Kind {
	case KindRecurring:
		return fmt.Sprintf("*/%d %s", int(e.Every/time.Minute), e.Command)
	case KindOneTime:
		return fmt.Sprintf("%d %d %d %d %d %s", e.At.Minute(), e.At.Hour(), e.At.Day(), int(e.At.Month()), e.At.Year(), e.Command)
	default:
		return e.Command
	}
}
