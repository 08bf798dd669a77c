package runstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phaseweaver/internal/pipeline"
)

// Recorder writes the run record at the start and end of an invocation.
type Recorder struct {
	Store *Store

	now func() time.Time
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{Store: store, now: func() time.Time { return time.Now().UTC() }}
}

// NewRunID returns a random identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// Start persists run with status running and returns it as stored.
func (r *Recorder) Start(run Run) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if run.RunID == "" {
		run.RunID = NewRunID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = r.now()
	}
	run.Status = StatusRunning
	run.EndTime = nil
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Complete finalizes run from the engine outcome and the error the engine
// returned. It writes run.json and summary.yaml, plus failure.json when
// runErr is non-nil. out may be nil if the engine never ran.
func (r *Recorder) Complete(run Run, out *pipeline.Outcome, runErr error) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	end := r.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	run.Status = StatusFor(out, runErr)
	run.Phases = phaseRecords(out)

	var errs []error
	if err := r.Store.SaveRun(run); err != nil {
		errs = append(errs, err)
	}
	if err := r.Store.SaveSummary(summarize(run, out)); err != nil {
		errs = append(errs, err)
	}
	if runErr != nil {
		f, err := Classify(runErr)
		if err == nil {
			err = r.Store.SaveFailure(f)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("record failure: %w", err))
		}
	}
	return run, errors.Join(errs...)
}

func phaseRecords(out *pipeline.Outcome) []PhaseRecord {
	if out == nil {
		return []PhaseRecord{}
	}
	recs := make([]PhaseRecord, 0, len(out.Phases))
	for _, p := range out.Phases {
		recs = append(recs, PhaseRecord{
			Phase:      string(p.Phase),
			State:      string(p.State),
			DurationMS: p.Duration.Milliseconds(),
		})
	}
	return recs
}

func summarize(run Run, out *pipeline.Outcome) Summary {
	s := Summary{
		RunID:    run.RunID,
		Mode:     run.Mode,
		Snapshot: run.Snapshot,
		App:      run.App,
		Status:   run.Status,
		Phases:   run.Phases,
	}
	if run.EndTime != nil {
		s.DurationSeconds = run.EndTime.Sub(run.StartTime).Seconds()
	}
	if out == nil {
		return s
	}
	s.Completed = out.Summary
	s.Selected = out.Selected
	if out.Staging != nil {
		s.Staged = out.Staging.Paths
	}
	if out.Build != nil {
		s.Build = &BuildSummary{
			Status:     string(out.Build.Status),
			Tool:       out.Build.Tool,
			FailedStep: out.Build.FailedStep,
		}
	}
	s.Metrics = out.Metrics
	return s
}
