package build

import (
	"errors"
	"fmt"

	"github.com/tugbuild/tug/internal/tugfile"
)

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCopy                = errors.New("copy failed")
	ErrPull                = errors.New("base image pull failed")
	ErrCommandFailed       = errors.New("command failed")
	ErrContextMissing      = errors.New("no build context, instruction precedes FROM")
)

// Failure of a single instruction.
type StepError struct {
	Index   int // 0-based position in the instruction list.
	Keyword tugfile.Keyword
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Keyword, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrBuild, e.Err}
}

// An instruction skipped without failing the build.
type Warning struct {
	Index   int
	Keyword tugfile.Keyword
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("step %d (%s): %v", w.Index+1, w.Keyword, w.Err)
}
