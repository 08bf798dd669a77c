// Package config loads the immutable run configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, the
// PHASEWEAVER_* environment, explicit overrides from the command line.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"phaseweaver/internal/logging"
)

// DefaultFileName is looked up in the project directory when no explicit
// config file is given.
const DefaultFileName = "phaseweaver.yaml"

// DefaultSnapshot is used when no snapshot is selected.
const DefaultSnapshot = "snapshot-1"

// Config is the complete run configuration. Use Clone to hand a copy to a
// component that must not see later changes.
type Config struct {
	// ProjectDir is the absolute project root. It is set by the loader, not
	// read from the file.
	ProjectDir string `koanf:"-"`

	Snapshot string `koanf:"snapshot"`
	App      string `koanf:"app"`
	Mode     string `koanf:"mode"`

	Paths     Paths          `koanf:"paths"`
	Phases    Phases         `koanf:"phases"`
	Build     Build          `koanf:"build"`
	Artifacts Artifacts      `koanf:"artifacts"`
	Logging   logging.Config `koanf:"logging"`
}

// Paths are relative to the project directory unless absolute.
type Paths struct {
	TransformationLog string `koanf:"transformation_log"`
	Transformed       string `koanf:"transformed"`
	Staging           string `koanf:"staging"`
	RunLogs           string `koanf:"run_logs"`
	Deliveries        string `koanf:"deliveries"`
}

// Phases configures the sub-tasks and command template of each script phase.
type Phases struct {
	Extract   PhaseConfig     `koanf:"extract"`
	Validate  PhaseConfig     `koanf:"validate"`
	Analyze   PhaseConfig     `koanf:"analyze"`
	Transform TransformConfig `koanf:"transform"`
}

// PhaseConfig holds a named sub-task list. Command is an argv template where
// {name} is replaced by the sub-task name.
type PhaseConfig struct {
	Command  []string `koanf:"command"`
	Subtasks []string `koanf:"subtasks"`
}

// TransformConfig holds source/target pairs. Command may use {source} and
// {target}.
type TransformConfig struct {
	Command  []string        `koanf:"command"`
	Subtasks []TransformPair `koanf:"subtasks"`
}

// TransformPair is one transform sub-task.
type TransformPair struct {
	Source string `koanf:"source"`
	Target string `koanf:"target"`
}

// Build configures the build invoker.
type Build struct {
	Tool  string   `koanf:"tool"`
	Steps []string `koanf:"steps"`
}

// Artifacts configures how the transformation log is read.
type Artifacts struct {
	Delimiter    string   `koanf:"delimiter"`
	SuccessValue string   `koanf:"success_value"`
	Extensions   []string `koanf:"extensions"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Snapshot == "" {
		cfg.Snapshot = DefaultSnapshot
	}
	if cfg.Mode == "" {
		cfg.Mode = "full"
	}

	p := &cfg.Paths
	if p.TransformationLog == "" {
		p.TransformationLog = filepath.Join("logs", "transformation.log")
	}
	if p.Transformed == "" {
		p.Transformed = filepath.Join("work", "transformed")
	}
	if p.Staging == "" {
		p.Staging = filepath.Join("target", "artifacts")
	}
	if p.RunLogs == "" {
		p.RunLogs = "runlogs"
	}
	if p.Deliveries == "" {
		p.Deliveries = "deliveries"
	}

	defaultPhase(&cfg.Phases.Extract, "extract",
		"source-files", "config-files", "data-files", "metadata")
	defaultPhase(&cfg.Phases.Validate, "validate",
		"source-files", "config-files", "data-files")
	defaultPhase(&cfg.Phases.Analyze, "analyze",
		"dependencies", "patterns", "metrics", "quality")

	t := &cfg.Phases.Transform
	if len(t.Command) == 0 {
		t.Command = []string{"python", "tools/pipeline/transform-{source}-to-{target}.py"}
	}
	if len(t.Subtasks) == 0 {
		t.Subtasks = []TransformPair{
			{Source: "source-files", Target: "target-format"},
			{Source: "config-files", Target: "target-config"},
			{Source: "data-files", Target: "target-schema"},
		}
	}

	if cfg.Build.Tool == "" {
		cfg.Build.Tool = "ant"
	}
	if len(cfg.Build.Steps) == 0 {
		cfg.Build.Steps = []string{"clean", "build", "install"}
	}

	a := &cfg.Artifacts
	if a.Delimiter == "" {
		a.Delimiter = "|"
	}
	if a.SuccessValue == "" {
		a.SuccessValue = "0"
	}
	if len(a.Extensions) == 0 {
		a.Extensions = []string{".src", ".dat", ".cfg"}
	}

	defaults := logging.DefaultConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Format
	}
}

func defaultPhase(p *PhaseConfig, verb string, subtasks ...string) {
	if len(p.Command) == 0 {
		p.Command = []string{"python", "tools/pipeline/" + verb + "-{name}.py"}
	}
	if len(p.Subtasks) == 0 {
		p.Subtasks = subtasks
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.ProjectDir == "" {
		errs = append(errs, errors.New("project directory is required"))
	}
	if strings.TrimSpace(c.Snapshot) == "" {
		errs = append(errs, errors.New("snapshot is required"))
	} else if strings.ContainsAny(c.Snapshot, `/\`) || c.Snapshot == ".." {
		errs = append(errs, fmt.Errorf("snapshot %q must be a single directory name", c.Snapshot))
	}

	for name, p := range map[string]PhaseConfig{
		"extract":  c.Phases.Extract,
		"validate": c.Phases.Validate,
		"analyze":  c.Phases.Analyze,
	} {
		if len(p.Command) == 0 {
			errs = append(errs, fmt.Errorf("phases.%s.command is empty", name))
		}
	}
	if len(c.Phases.Transform.Command) == 0 {
		errs = append(errs, errors.New("phases.transform.command is empty"))
	}
	for i, pair := range c.Phases.Transform.Subtasks {
		if pair.Source == "" || pair.Target == "" {
			errs = append(errs, fmt.Errorf("phases.transform.subtasks[%d] needs source and target", i))
		}
	}

	if c.Build.Tool == "" {
		errs = append(errs, errors.New("build.tool is required"))
	}
	if c.Artifacts.Delimiter == "" {
		errs = append(errs, errors.New("artifacts.delimiter is required"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ProjectDir != "" {
		errs = append(errs, c.validateRunLogs()...)
	}
	return errors.Join(errs...)
}

// validateRunLogs rejects a run-log directory whose reset would delete the
// project or one of the trees the pipeline reads and writes.
func (c Config) validateRunLogs() []error {
	runLogs := c.Resolve(c.Paths.RunLogs)
	var errs []error
	if Contains(runLogs, c.ProjectDir) {
		errs = append(errs, fmt.Errorf("paths.run_logs %q must be inside the project directory, not at or above it", c.Paths.RunLogs))
	}
	for _, other := range []struct{ key, path string }{
		{"paths.transformation_log", c.Paths.TransformationLog},
		{"paths.transformed", c.Paths.Transformed},
		{"paths.staging", c.Paths.Staging},
	} {
		if Contains(runLogs, c.Resolve(other.path)) {
			errs = append(errs, fmt.Errorf("paths.run_logs %q must not contain %s %q", c.Paths.RunLogs, other.key, other.path))
		}
	}
	return errs
}

// Contains reports whether child is dir or lies below it.
func Contains(dir, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	out := c
	out.Phases.Extract = c.Phases.Extract.clone()
	out.Phases.Validate = c.Phases.Validate.clone()
	out.Phases.Analyze = c.Phases.Analyze.clone()
	out.Phases.Transform.Command = cloneStrings(c.Phases.Transform.Command)
	if c.Phases.Transform.Subtasks != nil {
		out.Phases.Transform.Subtasks = append([]TransformPair(nil), c.Phases.Transform.Subtasks...)
	}
	out.Build.Steps = cloneStrings(c.Build.Steps)
	out.Artifacts.Extensions = cloneStrings(c.Artifacts.Extensions)
	return out
}

func (p PhaseConfig) clone() PhaseConfig {
	return PhaseConfig{Command: cloneStrings(p.Command), Subtasks: cloneStrings(p.Subtasks)}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Resolve returns p joined to the project directory unless it is absolute.
func (c Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// DeliveryDir is the snapshot's delivery directory relative to the project.
func (c Config) DeliveryDir() string {
	return filepath.ToSlash(filepath.Join(c.Paths.Deliveries, c.Snapshot))
}

// ChildEnv is the environment every phase command receives on top of the
// inherited one.
func (c Config) ChildEnv() map[string]string {
	return map[string]string{
		"DELIVERY_DIR":  c.DeliveryDir(),
		"SNAPSHOT_NAME": c.Snapshot,
		"APP_NAME":      c.App,
	}
}
