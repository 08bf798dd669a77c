package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"phaseweaver/internal/artifact"
	"phaseweaver/internal/config"
	"phaseweaver/internal/pipeline"
	"phaseweaver/internal/prompt"
	"phaseweaver/internal/report"
)

// Version is reported by --version. It is set at link time.
var Version = "dev"

// app carries what the commands share during one Run.
type app struct {
	streams IO
	result  Result

	// entered is set once a command's RunE starts; errors before that are
	// usage errors from cobra.
	entered bool

	projectDir string
	configFile string
	logLevel   string
	logFormat  string
}

func (a *app) overrides(extra map[string]string) map[string]string {
	o := map[string]string{
		"logging.level":  a.logLevel,
		"logging.format": a.logFormat,
	}
	for k, v := range extra {
		o[k] = v
	}
	return o
}

func (a *app) execute(ctx context.Context, extra map[string]string) error {
	res, err := Execute(ctx, Invocation{
		ProjectDir: a.projectDir,
		ConfigFile: a.configFile,
		Overrides:  a.overrides(extra),
	}, a.streams)
	a.result = res
	return err
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "phaseweaver",
		Short: "Run the extract, validate, analyze, transform and build phases over a project",
		Long: `phaseweaver runs a project's processing scripts phase by phase, stops at the
first failing sub-task, stages the artifacts the transformation log reports as
clean, and hands them to the build tool.

Every invocation clears the run-log directory and leaves behind one log per
command, run.json, summary.yaml, events.json and metrics.prom.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.streams.In)
	root.SetOut(a.streams.Out)
	root.SetErr(a.streams.Err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	root.PersistentFlags().StringVarP(&a.projectDir, "project", "p", ".", "project directory")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default <project>/"+config.DefaultFileName+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (console, json)")

	root.AddCommand(newRunCommand(a), newInteractiveCommand(a), newPlanCommand(a), newSelectCommand(a))
	return root
}

func newRunCommand(a *app) *cobra.Command {
	var mode, snapshot, appName, tool string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline non-interactively",
		Long: `Run the pipeline for the given mode.

Modes:
  analysis          extract, validate, analyze
  transform-build   extract, validate, transform, build
  full              all five phases

Examples:
  # Full pipeline over the current directory
  phaseweaver run

  # Analysis of another project and snapshot
  phaseweaver run -p ./legacy --mode analysis --snapshot snapshot-2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "" {
				if _, err := pipeline.ParseMode(mode); err != nil {
					return invalidInvocationf("invalid --mode %q (expected analysis|transform-build|full)", mode)
				}
			}
			a.entered = true
			return a.execute(cmd.Context(), map[string]string{
				"mode":       mode,
				"snapshot":   snapshot,
				"app":        appName,
				"build.tool": tool,
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "analysis, transform-build or full (default from config, else full)")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "delivery snapshot name")
	cmd.Flags().StringVar(&appName, "app", "", "application name")
	cmd.Flags().StringVar(&tool, "build-tool", "", "build tool resolved on PATH")
	return cmd
}

func newInteractiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Prompt for project, snapshot, application and mode, then run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.entered = true
			rep := report.New(a.streams.Out)
			rep.Header()

			opts, err := prompt.New(a.streams.In, a.streams.Out).Collect()
			switch {
			case errors.Is(err, prompt.ErrExit):
				a.result.ExitCode = ExitSuccess
				return nil
			case errors.Is(err, config.ErrProjectNotFound):
				rep.Fail(fmt.Sprintf("Directory '%s' not found. Exiting.", opts.ProjectDir))
				return err
			case errors.Is(err, prompt.ErrInvalidChoice):
				return invalidInvocationf("%v", err)
			case err != nil:
				return err
			}
			rep.Selected(opts.Mode)

			a.projectDir = opts.ProjectDir
			return a.execute(cmd.Context(), map[string]string{
				"mode":     string(opts.Mode),
				"snapshot": opts.Snapshot,
				"app":      opts.App,
			})
		},
	}
}

func newPlanCommand(a *app) *cobra.Command {
	var mode string
	var dot bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the phases a mode runs, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return invalidInvocationf("invalid --mode %q (expected analysis|transform-build|full)", mode)
			}
			a.entered = true
			plan, err := pipeline.PlanFor(m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dot {
				return plan.DOT(out, nil)
			}
			fmt.Fprintf(out, "%s:\n", m.Label())
			for _, p := range plan.Phases {
				fmt.Fprintf(out, "  %d. %s\n", p.Number(), p.Title())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(pipeline.ModeFull), "analysis, transform-build or full")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the phase graph in Graphviz DOT format")
	return cmd
}

func newSelectCommand(a *app) *cobra.Command {
	var count bool
	cmd := &cobra.Command{
		Use:   "select [transformation-log]",
		Short: "Print the artifacts a transformation log marks as successful",
		Long: `Print, one per line, the artifact names the build phase would stage.

The log defaults to paths.transformation_log of the project configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a.entered = true
			defer func() {
				if err != nil {
					report.New(a.streams.Out).Fail(err.Error())
				}
			}()
			cfg, err := config.Load(config.LoadOptions{
				ProjectDir: a.projectDir,
				File:       a.configFile,
				Overrides:  a.overrides(nil),
			})
			if err != nil {
				return err
			}
			logPath := cfg.Resolve(cfg.Paths.TransformationLog)
			if len(args) == 1 {
				logPath = args[0]
			}

			schema := artifact.DefaultSchema()
			schema.Delimiter = cfg.Artifacts.Delimiter
			schema.SuccessValue = cfg.Artifacts.SuccessValue

			selected, err := artifact.Select(logPath, schema)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range selected {
				fmt.Fprintln(out, name)
			}
			if count {
				total, err := artifact.CountRecords(logPath, schema, cfg.Artifacts.Extensions)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d of %d records successful\n", len(selected), total)
			}
			a.result.ExitCode = ExitSuccess
			return nil
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "also print the selected and total record counts")
	return cmd
}
