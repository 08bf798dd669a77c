package pipeline

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"phaseweaver/internal/core"
	"phaseweaver/internal/trace"
)

// Subtask is one unit of a phase: a name, or a source/target pair for
// transform.
type Subtask struct {
	Name   string
	Source string
	Target string
}

// Pair builds a transform sub-task.
func Pair(source, target string) Subtask {
	return Subtask{Name: source + "-to-" + target, Source: source, Target: target}
}

// Descriptor is how the sub-task is recorded in the Summary.
func (s Subtask) Descriptor() string {
	if s.Source != "" || s.Target != "" {
		return s.Source + " → " + s.Target
	}
	return s.Name
}

// CommandTemplate is an argv whose elements may contain {name}, {source} and
// {target}.
type CommandTemplate []string

// Render substitutes the sub-task's fields into a fresh argv.
func (t CommandTemplate) Render(s Subtask) []string {
	r := strings.NewReplacer("{name}", s.Name, "{source}", s.Source, "{target}", s.Target)
	argv := make([]string, len(t))
	for i, arg := range t {
		argv[i] = r.Replace(arg)
	}
	return argv
}

// PhaseSpec is everything the Executor needs to run one script phase.
type PhaseSpec struct {
	Phase    Phase
	Subtasks []Subtask
	Command  CommandTemplate

	// Env is handed to every sub-task command.
	Env map[string]string
}

// Describe returns the human-readable label of a sub-task, e.g.
// "Extracting metadata".
func (s PhaseSpec) Describe(st Subtask) string {
	switch s.Phase {
	case Extract:
		return "Extracting " + st.Name
	case Validate:
		return "Validating " + st.Name
	case Analyze:
		return "Analyzing " + st.Name
	case Transform:
		return "Transforming " + st.Source + " to " + st.Target
	default:
		return string(s.Phase) + " " + st.Descriptor()
	}
}

// Executor runs the sub-tasks of a phase in order.
type Executor struct {
	Runner  core.CommandRunner
	Summary *Summary
	Sink    trace.Sink

	logger *zap.Logger
}

// NewExecutor creates an executor recording into summary.
func NewExecutor(runner core.CommandRunner, summary *Summary, sink trace.Sink, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Executor{Runner: runner, Summary: summary, Sink: sink, logger: logger.Named("executor")}
}

// RunPhase runs every sub-task of spec, stopping at the first one that does
// not exit 0. That failure is returned as a *SubtaskError; an interrupt is
// returned wrapping core.ErrInterrupted. Sub-tasks after the failing one are
// never started.
func (e *Executor) RunPhase(ctx context.Context, spec PhaseSpec) error {
	if e.Runner == nil || e.Summary == nil {
		return errors.New("executor needs a runner and a summary")
	}
	if len(spec.Command) == 0 {
		return errors.Errorf("phase %s has no command template", spec.Phase)
	}

	for _, st := range spec.Subtasks {
		desc := spec.Describe(st)
		cmd := core.Command{
			Argv:        spec.Command.Render(st),
			Description: desc,
			Env:         spec.Env,
		}

		res, err := e.Runner.Run(ctx, cmd)
		if err != nil {
			if errors.Is(err, core.ErrInterrupted) {
				return err
			}
			e.logger.Warn("sub-task could not start", zap.String("phase", string(spec.Phase)), zap.String("command", cmd.String()), zap.Error(err))
			return e.fail(spec.Phase, st, &SubtaskError{
				Phase: spec.Phase, Subtask: st.Descriptor(), Description: desc, ExitCode: -1, Err: err,
			})
		}
		if !res.Succeeded() {
			e.logger.Warn("sub-task failed", zap.String("phase", string(spec.Phase)), zap.String("command", cmd.String()),
				zap.Int("exit_code", res.ExitCode), zap.String("log", res.LogPath))
			return e.fail(spec.Phase, st, &SubtaskError{
				Phase: spec.Phase, Subtask: st.Descriptor(), Description: desc, ExitCode: res.ExitCode, LogPath: res.LogPath,
			})
		}

		e.Summary.Append(spec.Phase, st.Descriptor())
		e.logger.Debug("sub-task completed", zap.String("phase", string(spec.Phase)), zap.String("subtask", st.Descriptor()),
			zap.Duration("duration", res.Duration))
		trace.SafeRecord(e.Sink, trace.Event{
			Kind:        trace.EventSubtaskSucceeded,
			Phase:       string(spec.Phase),
			Subtask:     st.Descriptor(),
			Description: desc,
			LogPath:     res.LogPath,
		})
	}

	trace.SafeRecord(e.Sink, trace.Event{
		Kind:  trace.EventPhaseCompleted,
		Phase: string(spec.Phase),
		Title: spec.Phase.Noun(),
		Items: e.Summary.Items(spec.Phase),
	})
	return nil
}

func (e *Executor) fail(p Phase, st Subtask, serr *SubtaskError) error {
	trace.SafeRecord(e.Sink, trace.Event{
		Kind:        trace.EventSubtaskFailed,
		Phase:       string(p),
		Subtask:     st.Descriptor(),
		Description: serr.Description,
		ExitCode:    serr.ExitCode,
		LogPath:     serr.LogPath,
	})
	return serr
}
