// Package build drives the external build tool over the staged artifacts.
package build

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"phaseweaver/internal/core"
)

// DefaultSteps are the build tool targets run in order.
var DefaultSteps = []string{"clean", "build", "install"}

// Status is the outcome of a build attempt.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result describes a build attempt.
type Result struct {
	Status Status

	// Tool is the configured tool name; ToolPath is where it was found.
	Tool     string
	ToolPath string

	// Completed lists the steps that exited 0, in order.
	Completed []string

	// FailedStep, ExitCode and LogPath describe the failing step, if any.
	FailedStep string
	ExitCode   int
	LogPath    string

	// Err holds a start failure of the failing step.
	Err error
}

// Attempted reports whether the tool was found and run.
func (r *Result) Attempted() bool {
	return r != nil && r.Status != StatusSkipped
}

// Invoker runs the build steps with the configured tool.
type Invoker struct {
	Tool  string
	Steps []string

	// Dir is the staged artifact tree; every step runs there.
	Dir string

	// Env is added to the environment of every step.
	Env map[string]string

	Runner core.CommandRunner

	lookPath func(string) (string, error)
	logger   *zap.Logger
}

// NewInvoker creates an Invoker. Empty steps mean DefaultSteps.
func NewInvoker(tool string, steps []string, dir string, runner core.CommandRunner, logger *zap.Logger) *Invoker {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		Tool:     tool,
		Steps:    append([]string(nil), steps...),
		Dir:      dir,
		Runner:   runner,
		lookPath: exec.LookPath,
		logger:   logger.Named("build"),
	}
}

// Invoke resolves the tool on PATH and runs each step, stopping at the first
// failure. An unresolvable tool is a skip, not an error. The only errors
// returned are interrupts and a missing runner.
func (i *Invoker) Invoke(ctx context.Context) (*Result, error) {
	if i.Runner == nil {
		return nil, errors.New("build invoker has no runner")
	}
	res := &Result{Tool: i.Tool, Completed: []string{}}

	path, err := i.lookPath(i.Tool)
	if err != nil || i.Tool == "" {
		i.logger.Warn("build tool not found, skipping build", zap.String("tool", i.Tool), zap.Error(err))
		res.Status = StatusSkipped
		return res, nil
	}
	res.ToolPath = path

	stem := filepath.Base(i.Tool)
	for _, step := range i.Steps {
		cmdRes, err := i.Runner.Run(ctx, core.Command{
			Argv:        []string{path, step},
			Description: "Build " + step,
			Dir:         i.Dir,
			Env:         i.Env,
			LogName:     stem + "_" + step,
		})
		if err != nil {
			if errors.Is(err, core.ErrInterrupted) {
				return nil, err
			}
			res.Status, res.FailedStep, res.ExitCode, res.Err = StatusFailed, step, -1, err
			return res, nil
		}
		if !cmdRes.Succeeded() {
			res.Status, res.FailedStep, res.ExitCode, res.LogPath = StatusFailed, step, cmdRes.ExitCode, cmdRes.LogPath
			i.logger.Warn("build step failed", zap.String("step", step), zap.Int("exit_code", cmdRes.ExitCode), zap.String("log", cmdRes.LogPath))
			return res, nil
		}
		res.Completed = append(res.Completed, step)
	}

	res.Status = StatusSucceeded
	return res, nil
}
