package directive

import (
	"errors"
	"fmt"
)

// ErrMalformedDirective is wrapped by every parse failure.
var ErrMalformedDirective = errors.New("malformed directive")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDirective, fmt.Sprintf(format, args...))
}

// LineError locates a parse failure inside a directive file.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }
