package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrTransition is returned for state changes the machine does not allow.
	ErrTransition = errors.New("invalid phase transition")
)

// PlanError wraps plan derivation failures.
type PlanError struct {
	Kind error
	Msg  string
}

func (e *PlanError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *PlanError) Unwrap() error { return e.Kind }

// SubtaskError reports the sub-task or build step that stopped the pipeline.
type SubtaskError struct {
	Phase       Phase
	Subtask     string
	Description string

	// ExitCode is the command's exit status, or -1 if it never started.
	ExitCode int
	LogPath  string

	// Err is the start failure, if any.
	Err error
}

func (e *SubtaskError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Description, e.Err)
	}
	if e.LogPath != "" {
		return fmt.Sprintf("%s failed with exit code %d (log: %s)", e.Description, e.ExitCode, e.LogPath)
	}
	return fmt.Sprintf("%s failed with exit code %d", e.Description, e.ExitCode)
}

func (e *SubtaskError) Unwrap() error { return e.Err }

func transitionf(format string, args ...any) error {
	return errors.Wrapf(ErrTransition, format, args...)
}
