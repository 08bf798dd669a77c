package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"phaseweaver/internal/config"
	"phaseweaver/internal/core"
	"phaseweaver/internal/logging"
	"phaseweaver/internal/metrics"
	"phaseweaver/internal/pipeline"
	"phaseweaver/internal/report"
	"phaseweaver/internal/runstate"
	"phaseweaver/internal/trace"
)

// Invocation is a fully parsed request to run the pipeline.
type Invocation struct {
	ProjectDir string
	ConfigFile string

	// Overrides are koanf keys set from flags; empty values are ignored.
	Overrides map[string]string
}

// IO holds the streams a command reads from and writes to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Result is what an invocation produced.
type Result struct {
	ExitCode int
	RunID    string
	Outcome  *pipeline.Outcome
}

// Execute loads the configuration, clears the run-log directory, runs the
// plan for the configured mode and writes the run record, the event trace
// and the metrics textfile. The report goes to streams.Out and logs to
// streams.Err.
func Execute(ctx context.Context, inv Invocation, streams IO) (res Result, execErr error) {
	res.ExitCode = ExitFailure
	rep := report.New(streams.Out)

	cfg, err := config.Load(config.LoadOptions{
		ProjectDir: inv.ProjectDir,
		File:       inv.ConfigFile,
		Overrides:  inv.Overrides,
	})
	if err != nil {
		if errors.Is(err, config.ErrProjectNotFound) {
			rep.Fail(fmt.Sprintf("Directory '%s' not found. Exiting.", inv.ProjectDir))
		} else {
			rep.Fail(err.Error())
		}
		return res, err
	}

	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		rep.Fail(err.Error())
		return res, err
	}
	plan, err := pipeline.PlanFor(mode)
	if err != nil {
		rep.Fail(err.Error())
		return res, err
	}

	logger, err := logging.NewWithWriter(cfg.Logging, streams.Err)
	if err != nil {
		rep.Fail(err.Error())
		return res, err
	}
	defer func() { _ = logger.Sync() }()

	store, err := runstate.NewStore(cfg.Resolve(cfg.Paths.RunLogs))
	if err != nil {
		rep.Fail(err.Error())
		return res, err
	}
	store.Protect(
		cfg.ProjectDir,
		cfg.Resolve(cfg.Paths.TransformationLog),
		cfg.Resolve(cfg.Paths.Transformed),
		cfg.Resolve(cfg.Paths.Staging),
	)
	if err := store.Reset(); err != nil {
		rep.Fail(err.Error())
		return res, errors.Wrap(err, "prepare run-log dir")
	}

	recorder := runstate.NewRecorder(store)
	run, err := recorder.Start(runstate.Run{
		Mode:       string(mode),
		Snapshot:   cfg.Snapshot,
		App:        cfg.App,
		ProjectDir: cfg.ProjectDir,
	})
	if err != nil {
		rep.Fail(err.Error())
		return res, err
	}
	res.RunID = run.RunID
	logger = logger.With(zap.String("run_id", run.RunID))
	logger.Info("run started", zap.String("mode", string(mode)), zap.String("snapshot", cfg.Snapshot),
		zap.String("project", cfg.ProjectDir))

	events := trace.NewRecorder()
	runner := core.NewRunner(cfg.ProjectDir, store.Dir(), logger)
	engine := pipeline.NewEngine(cfg, runner, trace.Multi{events, rep}, logger)

	start := time.Now()
	out, runErr := runEngine(ctx, engine, plan)
	elapsed := time.Since(start)
	res.Outcome = out

	rep.Final(out, runErr, elapsed)

	var bookkeeping []error
	exporter := metrics.NewExporter(string(mode), cfg.Snapshot, cfg.App)
	if out != nil {
		exporter.Observe(out.Metrics, out.Timings(), out.Duration)
	}
	if err := exporter.WriteTextfile(store.Path(runstate.MetricsFile)); err != nil {
		bookkeeping = append(bookkeeping, err)
	}
	if err := events.Trace(run.RunID).WriteFile(store.Path(runstate.EventsFile)); err != nil {
		bookkeeping = append(bookkeeping, err)
	}
	if _, err := recorder.Complete(run, out, runErr); err != nil {
		bookkeeping = append(bookkeeping, err)
	}
	for _, err := range bookkeeping {
		logger.Error("failed to write run record", zap.Error(err))
	}

	if runErr != nil {
		logger.Info("run finished", zap.Error(runErr), zap.Duration("elapsed", elapsed))
		return res, runErr
	}
	logger.Info("run finished", zap.Duration("elapsed", elapsed))
	res.ExitCode = ExitSuccess
	return res, nil
}

// runEngine converts a panic inside the engine into an internal failure.
func runEngine(ctx context.Context, engine *pipeline.Engine, plan pipeline.Plan) (out *pipeline.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &runstate.InternalError{Code: "Panic", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return engine.Run(ctx, plan)
}
