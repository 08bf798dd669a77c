package runstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"phaseweaver/internal/metrics"
)

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusSucceeded   RunStatus = "succeeded"
	StatusWarnings    RunStatus = "warnings"
	StatusFailed      RunStatus = "failed"
	StatusInterrupted RunStatus = "interrupted"
)

// PhaseRecord is the final state of one planned phase.
type PhaseRecord struct {
	Phase      string `json:"phase" yaml:"phase"`
	State      string `json:"state" yaml:"state"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

// Run is the persisted metadata of one invocation.
type Run struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Snapshot   string        `json:"snapshot"`
	App        string        `json:"app"`
	ProjectDir string        `json:"project_dir"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time"`
	Status     RunStatus     `json:"status"`
	Phases     []PhaseRecord `json:"phases"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Mode) == "" {
		errs = append(errs, errors.New("mode is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusRunning:
		if r.EndTime != nil {
			errs = append(errs, errors.New("end_time must be null while running"))
		}
	case StatusSucceeded, StatusWarnings, StatusFailed, StatusInterrupted:
		if r.EndTime == nil {
			errs = append(errs, fmt.Errorf("end_time is required for status %q", r.Status))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time precedes start_time"))
	}
	return errors.Join(errs...)
}

// FailureClass partitions the reasons a run can stop.
type FailureClass string

const (
	// FailureClassSubtask is a phase command or build step that did not exit 0.
	FailureClassSubtask FailureClass = "subtask"
	// FailureClassInterrupt is a user interrupt.
	FailureClassInterrupt FailureClass = "interrupt"
	// FailureClassConfig is an unusable project directory or configuration.
	FailureClassConfig FailureClass = "config"
	// FailureClassInternal is anything else, including recovered panics.
	FailureClassInternal FailureClass = "internal"
)

// Failure is a recorded run termination reason.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Phase        *string      `json:"phase,omitempty"`
	Subtask      *string      `json:"subtask,omitempty"`
	ExitCode     *int         `json:"exit_code,omitempty"`
	LogPath      string       `json:"log_path,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassSubtask:
		if f.Phase == nil || strings.TrimSpace(*f.Phase) == "" {
			errs = append(errs, errors.New("phase is required for a subtask failure"))
		}
	case FailureClassInterrupt, FailureClassConfig, FailureClassInternal:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}

// BuildSummary is the build outcome as reported in the summary.
type BuildSummary struct {
	Status     string `yaml:"status"`
	Tool       string `yaml:"tool"`
	FailedStep string `yaml:"failed_step,omitempty"`
}

// Summary is the human-oriented digest of a run, written as YAML.
type Summary struct {
	RunID           string              `yaml:"run_id"`
	Mode            string              `yaml:"mode"`
	Snapshot        string              `yaml:"snapshot"`
	App             string              `yaml:"app"`
	Status          RunStatus           `yaml:"status"`
	DurationSeconds float64             `yaml:"duration_seconds"`
	Phases          []PhaseRecord       `yaml:"phases"`
	Completed       map[string][]string `yaml:"completed"`
	Selected        []string            `yaml:"selected_artifacts,omitempty"`
	Staged          []string            `yaml:"staged_files,omitempty"`
	Build           *BuildSummary       `yaml:"build,omitempty"`
	Metrics         *metrics.Metrics    `yaml:"metrics,omitempty"`
}
