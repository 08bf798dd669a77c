package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"phaseweaver/internal/artifact"
	"phaseweaver/internal/build"
	"phaseweaver/internal/config"
	"phaseweaver/internal/core"
	"phaseweaver/internal/metrics"
	"phaseweaver/internal/trace"
)

// PhaseResult is the final state and wall time of one planned phase.
type PhaseResult struct {
	Phase    Phase
	State    PhaseState
	Duration time.Duration
}

// Outcome is what a run produced. It is returned even when the run aborted.
type Outcome struct {
	Plan  Plan
	Stage Stage

	Phases  []PhaseResult
	Summary map[string][]string

	// Set once the build phase has been entered.
	Selected []string
	Staging  *artifact.StagingResult
	Build    *build.Result
	Metrics  *metrics.Metrics

	// Err is the reason the run aborted, the same error Run returned.
	Err error

	Duration time.Duration
}

// Succeeded reports whether every planned phase completed.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Stage == StageDone
}

// BuildSkipped reports whether the build tool was missing.
func (o *Outcome) BuildSkipped() bool {
	return o != nil && o.Build != nil && o.Build.Status == build.StatusSkipped
}

// Timings converts the phase results for the metrics exporter.
func (o *Outcome) Timings() []metrics.PhaseTiming {
	out := make([]metrics.PhaseTiming, 0, len(o.Phases))
	for _, p := range o.Phases {
		out = append(out, metrics.PhaseTiming{Phase: string(p.Phase), Status: string(p.State), Duration: p.Duration})
	}
	return out
}

// Engine runs plans against one project configuration. Each Engine owns a
// fresh Summary.
type Engine struct {
	cfg    config.Config
	runner core.CommandRunner
	sink   trace.Sink
	logger *zap.Logger

	summary *Summary
	now     func() time.Time
}

// NewEngine creates an engine over a private copy of cfg. A nil sink
// discards events.
func NewEngine(cfg config.Config, runner core.CommandRunner, sink trace.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Engine{
		cfg:     cfg.Clone(),
		runner:  runner,
		sink:    sink,
		logger:  logger.Named("engine"),
		summary: NewSummary(),
		now:     time.Now,
	}
}

// Summary returns the engine's summary.
func (e *Engine) Summary() *Summary { return e.summary }

// Spec builds the script phase spec of p from the configuration.
func (e *Engine) Spec(p Phase) (PhaseSpec, error) {
	spec := PhaseSpec{Phase: p, Env: e.cfg.ChildEnv()}
	var pc config.PhaseConfig
	switch p {
	case Extract:
		pc = e.cfg.Phases.Extract
	case Validate:
		pc = e.cfg.Phases.Validate
	case Analyze:
		pc = e.cfg.Phases.Analyze
	case Transform:
		tc := e.cfg.Phases.Transform
		spec.Command = CommandTemplate(tc.Command)
		for _, pair := range tc.Subtasks {
			spec.Subtasks = append(spec.Subtasks, Pair(pair.Source, pair.Target))
		}
		return spec, nil
	default:
		return PhaseSpec{}, errors.Errorf("phase %s has no script spec", p)
	}
	spec.Command = CommandTemplate(pc.Command)
	for _, name := range pc.Subtasks {
		spec.Subtasks = append(spec.Subtasks, Subtask{Name: name})
	}
	return spec, nil
}

// Run executes plan. The returned Outcome is never nil. The error is nil
// only if every planned phase completed; otherwise it is a *SubtaskError, an
// error wrapping core.ErrInterrupted, or an internal fault.
func (e *Engine) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	start := e.now()
	m := NewMachine(plan)
	out := &Outcome{Plan: plan, Stage: StageStart}
	exec := NewExecutor(e.runner, e.summary, e.sink, e.logger)

	finish := func(runErr error) (*Outcome, error) {
		if runErr != nil {
			skipped, err := m.Abort()
			if err != nil {
				e.logger.Error("abort failed", zap.Error(err))
			}
			for _, p := range skipped {
				trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventPhaseSkipped, Phase: string(p), Number: p.Number(), Reason: "UpstreamFailed"})
			}
		} else if err := m.Finish(); err != nil {
			runErr = err
		}
		for i := range out.Phases {
			out.Phases[i].State = m.State(out.Phases[i].Phase)
		}
		for _, p := range plan.Phases {
			if m.State(p) == PhaseSkipped {
				out.Phases = append(out.Phases, PhaseResult{Phase: p, State: PhaseSkipped})
			}
		}
		out.Stage = m.Current()
		out.Summary = e.summary.Map()
		out.Err = runErr
		out.Duration = e.now().Sub(start)
		return out, runErr
	}

	for _, p := range plan.Phases {
		if err := ctx.Err(); err != nil {
			return finish(errors.Wrapf(core.ErrInterrupted, "before %s", p))
		}
		if err := m.Enter(p); err != nil {
			return finish(err)
		}
		trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventPhaseStarted, Phase: string(p), Number: p.Number(), Title: p.Title()})
		e.logger.Info("phase started", zap.String("phase", string(p)))

		phaseStart := e.now()
		var err error
		if p == Build {
			err = e.runBuild(ctx, out)
		} else {
			var spec PhaseSpec
			if spec, err = e.Spec(p); err == nil {
				err = exec.RunPhase(ctx, spec)
			}
		}
		out.Phases = append(out.Phases, PhaseResult{Phase: p, Duration: e.now().Sub(phaseStart)})

		if err != nil {
			trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventPhaseFailed, Phase: string(p), Number: p.Number(), Reason: failureReason(err)})
			e.logger.Warn("phase failed", zap.String("phase", string(p)), zap.Error(err))
			return finish(err)
		}
		if err := m.Complete(p); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

// runBuild selects, stages, builds and measures. Metrics are computed even
// when the build step fails.
func (e *Engine) runBuild(ctx context.Context, out *Outcome) error {
	schema := artifact.DefaultSchema()
	schema.Delimiter = e.cfg.Artifacts.Delimiter
	schema.SuccessValue = e.cfg.Artifacts.SuccessValue
	logPath := e.cfg.Resolve(e.cfg.Paths.TransformationLog)

	selected, err := artifact.Select(logPath, schema)
	if err != nil {
		return errors.Wrap(err, "select artifacts")
	}
	out.Selected = selected
	trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventArtifactsSelected, Phase: string(Build), Count: len(selected), Items: selected})

	stagingDir := e.cfg.Resolve(e.cfg.Paths.Staging)
	stager := artifact.NewStager(e.cfg.Resolve(e.cfg.Paths.Transformed), stagingDir, e.logger)
	staged, err := stager.Stage(selected)
	if err != nil {
		return errors.Wrap(err, "stage artifacts")
	}
	out.Staging = staged
	trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventArtifactsStaged, Phase: string(Build), Count: staged.Copied})

	total, err := artifact.CountRecords(logPath, schema, e.cfg.Artifacts.Extensions)
	if err != nil {
		return errors.Wrap(err, "count artifact records")
	}

	inv := build.NewInvoker(e.cfg.Build.Tool, e.cfg.Build.Steps, stagingDir, e.runner, e.logger)
	inv.Env = e.cfg.ChildEnv()
	br, err := inv.Invoke(ctx)
	if err != nil {
		return err
	}
	out.Build = br

	for _, step := range br.Completed {
		e.summary.Append(Build, step)
		trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventBuildStep, Phase: string(Build), Subtask: step, Tool: br.Tool, OK: true})
	}

	calculated := metrics.Calculate(total, len(selected), staged.Copied)
	out.Metrics = &calculated

	switch br.Status {
	case build.StatusSkipped:
		trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventBuildSkipped, Phase: string(Build), Tool: br.Tool, Reason: "ToolNotFound"})
		return nil
	case build.StatusFailed:
		trace.SafeRecord(e.sink, trace.Event{
			Kind: trace.EventBuildStep, Phase: string(Build), Subtask: br.FailedStep, Tool: br.Tool,
			ExitCode: br.ExitCode, LogPath: br.LogPath,
		})
		return &SubtaskError{
			Phase:       Build,
			Subtask:     br.FailedStep,
			Description: br.Tool + " " + br.FailedStep,
			ExitCode:    br.ExitCode,
			LogPath:     br.LogPath,
			Err:         br.Err,
		}
	default:
		trace.SafeRecord(e.sink, trace.Event{Kind: trace.EventPhaseCompleted, Phase: string(Build), Title: Build.Noun(), Items: e.summary.Items(Build)})
		return nil
	}
}

func failureReason(err error) string {
	var serr *SubtaskError
	switch {
	case errors.Is(err, core.ErrInterrupted):
		return "Interrupted"
	case errors.As(err, &serr):
		return "SubtaskFailed"
	default:
		return "InternalError"
	}
}
