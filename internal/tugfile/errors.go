package tugfile

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrMissingPayload     = errors.New("missing payload")
	ErrMalformed          = errors.New("malformed instruction")
	ErrInvalidShell       = errors.New("invalid shell command")
)

// A line [ParseStrict] could not turn into an instruction.
type LineError struct {
	Line int    // 1-based line number.
	Text string // Line content, trimmed.
	Err  error  // One of the sentinel errors above, possibly wrapped.
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
