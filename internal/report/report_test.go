package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"phaseweaver/internal/build"
	"phaseweaver/internal/core"
	"phaseweaver/internal/metrics"
	"phaseweaver/internal/pipeline"
	"phaseweaver/internal/trace"
)

func mustPlan(t *testing.T, mode pipeline.Mode) pipeline.Plan {
	t.Helper()
	plan, err := pipeline.PlanFor(mode)
	if err != nil {
		t.Fatalf("PlanFor: %v", err)
	}
	return plan
}

func TestReporter_PhaseBannerAndSubtaskLines(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Record(trace.Event{Kind: trace.EventPhaseStarted, Phase: "extract", Number: 1, Title: "EXTRACTION"})
	r.Record(trace.Event{Kind: trace.EventSubtaskSucceeded, Phase: "extract", Description: "Extracting source-files"})
	r.Record(trace.Event{Kind: trace.EventSubtaskFailed, Phase: "extract", Description: "Extracting config-files"})

	rule := strings.Repeat("=", 60)
	want := "\n" + rule + "\nPHASE 1: EXTRACTION\n" + rule + "\n\n" +
		"✓ Extracting source-files completed\n" +
		"❌ Extracting config-files failed.\n"
	assert.Equal(t, want, buf.String())
}

func TestReporter_PhaseSummaryListsItems(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Record(trace.Event{Kind: trace.EventPhaseCompleted, Phase: "transform", Title: "Transformation",
		Items: []string{"source-files → target-format", "config-files → target-config"}})

	want := "\nTransformation Summary:\n" + strings.Repeat("-", 40) + "\n" +
		"  1. source-files → target-format\n" +
		"  2. config-files → target-config\n\n"
	assert.Equal(t, want, buf.String())
}

func TestReporter_EmptySummaryPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Record(trace.Event{Kind: trace.EventPhaseCompleted, Phase: "extract", Title: "Extraction"})
	assert.Empty(t, buf.String())
}

func TestReporter_BuildEvents(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Record(trace.Event{Kind: trace.EventArtifactsSelected, Phase: "build", Count: 2})
	r.Record(trace.Event{Kind: trace.EventArtifactsStaged, Phase: "build", Count: 2})
	r.Record(trace.Event{Kind: trace.EventBuildStep, Phase: "build", Tool: "ant", Subtask: "clean", OK: true})
	r.Record(trace.Event{Kind: trace.EventBuildStep, Phase: "build", Tool: "ant", Subtask: "build", ExitCode: 2})

	want := "Copying validated artifacts to target directory...\n" +
		"✓ Copied 2 validated artifacts\n\n" +
		"Building artifacts using ANT...\n\n" +
		"✓ ant clean\n" +
		"❌ ant build\n"
	assert.Equal(t, want, buf.String())
}

func TestReporter_BuildSkipped(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Record(trace.Event{Kind: trace.EventBuildSkipped, Phase: "build", Tool: "ant", Reason: "ToolNotFound"})
	assert.Equal(t, "⚠ ant not found, skipping build step.\n", buf.String())
}

func TestReporter_FinalFullPipeline(t *testing.T) {
	m := metrics.Calculate(3, 2, 1)
	out := &pipeline.Outcome{
		Plan:    mustPlan(t, pipeline.ModeFull),
		Stage:   pipeline.StageDone,
		Build:   &build.Result{Status: build.StatusSucceeded, Tool: "ant"},
		Metrics: &m,
	}
	var buf bytes.Buffer
	New(&buf).Final(out, nil, 1234*time.Millisecond)

	got := buf.String()
	assert.Contains(t, got, "PIPELINE EXECUTION SUMMARY")
	assert.Contains(t, got, "Total Artifacts Processed:    3\n")
	assert.Contains(t, got, "Successful Transformations:   2\n")
	assert.Contains(t, got, "Artifacts Built:              1\n")
	assert.Contains(t, got, "Transformation Success Rate:  66.67%\n")
	assert.Contains(t, got, "Build Success Rate:           33.33%\n")
	assert.Contains(t, got, "✓ Pipeline completed successfully\n")
	assert.Contains(t, got, "Total execution time: 1.23 seconds\n")
}

func TestReporter_FinalWarnsWhenBuildSkipped(t *testing.T) {
	m := metrics.Calculate(0, 0, 0)
	out := &pipeline.Outcome{
		Plan:    mustPlan(t, pipeline.ModeTransformBuild),
		Stage:   pipeline.StageDone,
		Build:   &build.Result{Status: build.StatusSkipped, Tool: "ant"},
		Metrics: &m,
	}
	var buf bytes.Buffer
	New(&buf).Final(out, nil, time.Second)

	got := buf.String()
	assert.Contains(t, got, "Transformation Success Rate:  0.00%")
	assert.Contains(t, got, "⚠ Pipeline completed with warnings\n")
	assert.NotContains(t, got, "completed successfully")
}

func TestReporter_FinalAnalysisOnly(t *testing.T) {
	out := &pipeline.Outcome{Plan: mustPlan(t, pipeline.ModeAnalysis), Stage: pipeline.StageDone}
	var buf bytes.Buffer
	New(&buf).Final(out, nil, 2500*time.Millisecond)

	assert.Equal(t, "✓ Analysis complete.\n\nTotal execution time: 2.50 seconds\n", buf.String())
}

func TestReporter_FinalInterrupted(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Final(&pipeline.Outcome{}, pkgerrors.Wrap(core.ErrInterrupted, "before analyze"), time.Second)

	assert.Equal(t, "\n\n⚠ Pipeline interrupted by user.\n", buf.String())
}

func TestReporter_FinalBuildFailureKeepsMetrics(t *testing.T) {
	m := metrics.Calculate(4, 2, 2)
	out := &pipeline.Outcome{
		Plan:    mustPlan(t, pipeline.ModeFull),
		Stage:   pipeline.StageAborted,
		Metrics: &m,
	}
	err := &pipeline.SubtaskError{Phase: pipeline.Build, Subtask: "build", Description: "ant build", ExitCode: 2}
	var buf bytes.Buffer
	New(&buf).Final(out, err, time.Second)

	got := buf.String()
	assert.Contains(t, got, "Transformation Success Rate:  50.00%")
	assert.Contains(t, got, "❌ Pipeline failed with error: ")
	assert.NotContains(t, got, "Total execution time")
}

func TestReporter_SelectedAndHeader(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)
	r.Header()
	r.Selected(pipeline.ModeTransformBuild)

	assert.Contains(t, buf.String(), "\nPIPELINE ORCHESTRATOR\n")
	assert.Contains(t, buf.String(), "\n✓ Selected: Transform and Build\n\n")
}

func TestReporter_Fail(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Fail("Directory 'x' not found. Exiting.")
	assert.Equal(t, "❌ Directory 'x' not found. Exiting.\n", buf.String())
}
