// Package trace records what a pipeline run did, in the order it happened.
//
// Events describe logical transitions (a phase started, a sub-task exited 0,
// the build was skipped). They carry no timestamps, so two runs that take the
// same decisions produce the same trace.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EventKind is the stable discriminator of an Event. The string values are
// persisted; do not rename.
type EventKind string

const (
	EventPhaseStarted      EventKind = "PhaseStarted"
	EventSubtaskSucceeded  EventKind = "SubtaskSucceeded"
	EventSubtaskFailed     EventKind = "SubtaskFailed"
	EventPhaseCompleted    EventKind = "PhaseCompleted"
	EventPhaseFailed       EventKind = "PhaseFailed"
	EventPhaseSkipped      EventKind = "PhaseSkipped"
	EventArtifactsSelected EventKind = "ArtifactsSelected"
	EventArtifactsStaged   EventKind = "ArtifactsStaged"
	EventBuildSkipped      EventKind = "BuildSkipped"
	EventBuildStep         EventKind = "BuildStep"
)

// Event is a single logical transition.
type Event struct {
	Kind EventKind `json:"kind"`

	// Seq is assigned by the Recorder, starting at 1.
	Seq int `json:"seq,omitempty"`

	// Phase is the phase name; Number is its 1-based position in the full
	// phase order and Title its display name.
	Phase  string `json:"phase,omitempty"`
	Number int    `json:"number,omitempty"`
	Title  string `json:"title,omitempty"`

	// Subtask is the sub-task descriptor or build step.
	Subtask     string `json:"subtask,omitempty"`
	Description string `json:"description,omitempty"`

	ExitCode int    `json:"exitCode,omitempty"`
	LogPath  string `json:"logPath,omitempty"`

	// Items is the ordered list a PhaseCompleted event reports, or the
	// selected artifact names.
	Items []string `json:"items,omitempty"`
	Count int      `json:"count,omitempty"`

	// Tool names the build tool for build events.
	Tool string `json:"tool,omitempty"`

	// OK is set on BuildStep events that exited 0.
	OK bool `json:"ok,omitempty"`

	// Reason is a stable code such as "UpstreamFailed" or "ToolNotFound".
	Reason string `json:"reason,omitempty"`
}

// RunTrace is the persisted trace of one run.
type RunTrace struct {
	RunID  string  `json:"runId"`
	Events []Event `json:"events"`
}

// Validate checks basic invariants and returns a descriptive error.
func (t *RunTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.RunID == "" {
		return errors.New("runId is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if isPhaseEvent(e.Kind) && e.Phase == "" {
			return fmt.Errorf("events[%d].phase is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

func isPhaseEvent(kind EventKind) bool {
	switch kind {
	case EventPhaseStarted, EventSubtaskSucceeded, EventSubtaskFailed,
		EventPhaseCompleted, EventPhaseFailed, EventPhaseSkipped:
		return true
	default:
		return false
	}
}

// Filter returns the events of the given kinds, in order.
func (t RunTrace) Filter(kinds ...EventKind) []Event {
	want := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Event
	for _, e := range t.Events {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// WriteFile persists the trace as indented JSON, replacing path atomically.
func (t RunTrace) WriteFile(path string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Events == nil {
		t.Events = []Event{}
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".events-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadFile loads a trace written by WriteFile.
func ReadFile(path string) (RunTrace, error) {
	var t RunTrace
	b, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, err
	}
	return t, t.Validate()
}
