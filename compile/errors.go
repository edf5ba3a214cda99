package compile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooManyRounds is returned when the loop exceeds Options.MaxRounds
var ErrTooManyRounds = errors.New("build did not converge")

// BuildInvocationError reports a build tool failure that produced no correctable diagnostics
type BuildInvocationError struct {
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BuildInvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build in %v failed: %v", e.Dir, e.Err)
	}
	message := fmt.Sprintf("build in %v exited with %d", e.Dir, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		message += ": " + stderr
	}
	return message
}

func (e *BuildInvocationError) Unwrap() error {
	return e.Err
}

// UncorrectableCompileError lists compile errors that are not located in a generated statement
type UncorrectableCompileError struct {
	Errors []*CompileError
}

func (e *UncorrectableCompileError) Error() string {
	lines := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		lines = append(lines, item.Error())
	}
	return fmt.Sprintf("%d compile error(s) outside of generated code:\n%v", len(e.Errors), strings.Join(lines, "\n"))
}
