package runstate

import (
	"errors"
	"fmt"

	"phaseweaver/internal/config"
	"phaseweaver/internal/core"
	"phaseweaver/internal/pipeline"
)

// InternalError wraps an unexpected fault, such as a recovered panic.
type InternalError struct {
	Code    string
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("internal failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("internal failure: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// Classify maps an error that stopped a run onto the failure taxonomy.
func Classify(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	if errors.Is(err, core.ErrInterrupted) {
		return Failure{
			FailureClass: FailureClassInterrupt,
			ErrorCode:    "Interrupted",
			ErrorMessage: err.Error(),
		}, nil
	}

	var serr *pipeline.SubtaskError
	if errors.As(err, &serr) && serr != nil {
		phase := string(serr.Phase)
		subtask := serr.Subtask
		code := "SubtaskFailed"
		if errors.Is(err, core.ErrStart) {
			code = "SubtaskNotStarted"
		}
		exit := serr.ExitCode
		return Failure{
			FailureClass: FailureClassSubtask,
			Phase:        &phase,
			Subtask:      nonEmptyPtr(subtask),
			ExitCode:     &exit,
			LogPath:      serr.LogPath,
			ErrorCode:    code,
			ErrorMessage: serr.Error(),
		}, nil
	}

	if errors.Is(err, config.ErrProjectNotFound) {
		return Failure{
			FailureClass: FailureClassConfig,
			ErrorCode:    "ProjectNotFound",
			ErrorMessage: err.Error(),
		}, nil
	}

	var ierr *InternalError
	if errors.As(err, &ierr) && ierr != nil {
		return Failure{
			FailureClass: FailureClassInternal,
			ErrorCode:    nonEmptyOr(ierr.Code, "InternalError"),
			ErrorMessage: nonEmptyOr(ierr.Message, ierr.Error()),
		}, nil
	}

	return Failure{
		FailureClass: FailureClassInternal,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
	}, nil
}

// StatusFor derives the final run status from the engine outcome.
func StatusFor(out *pipeline.Outcome, err error) RunStatus {
	switch {
	case err == nil && out.BuildSkipped():
		return StatusWarnings
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, core.ErrInterrupted):
		return StatusInterrupted
	default:
		return StatusFailed
	}
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func nonEmptyPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
