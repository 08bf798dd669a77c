// Package report renders a pipeline run for a human on a terminal.
//
// A Reporter is a trace.Sink: the engine's events drive the banners and the
// per-sub-task lines as they happen, and Final prints the closing block once
// the engine returns. Styling degrades to plain text when the writer is not a
// terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"phaseweaver/internal/core"
	"phaseweaver/internal/metrics"
	"phaseweaver/internal/pipeline"
	"phaseweaver/internal/trace"
)

const (
	bannerWidth  = 60
	summaryWidth = 40
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorFailure = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorTitle   = lipgloss.Color("#2196F3")
)

type styles struct {
	title   lipgloss.Style
	rule    lipgloss.Style
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	section lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorTitle),
		rule:    r.NewStyle().Faint(true),
		ok:      r.NewStyle().Foreground(colorSuccess),
		fail:    r.NewStyle().Foreground(colorFailure).Bold(true),
		warn:    r.NewStyle().Foreground(colorWarning),
		section: r.NewStyle().Bold(true),
	}
}

// Reporter writes the run report to w. It is safe for concurrent use.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
	st styles

	buildStarted bool
}

var _ trace.Sink = (*Reporter)(nil)

func New(w io.Writer) *Reporter {
	return &Reporter{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

// Header prints the program banner shown before interactive prompts.
func (r *Reporter) Header() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banner("PIPELINE ORCHESTRATOR")
}

// Selected confirms the chosen mode.
func (r *Reporter) Selected(mode pipeline.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("\n%s\n\n", r.st.ok.Render("✓ Selected: "+mode.Label()))
}

// Record renders one engine event.
func (r *Reporter) Record(ev trace.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case trace.EventPhaseStarted:
		r.buildStarted = false
		r.banner(fmt.Sprintf("PHASE %d: %s", ev.Number, ev.Title))
	case trace.EventSubtaskSucceeded:
		r.println(r.st.ok.Render("✓ " + ev.Description + " completed"))
	case trace.EventSubtaskFailed:
		r.println(r.st.fail.Render("❌ " + ev.Description + " failed."))
	case trace.EventPhaseCompleted:
		if ev.Phase == string(pipeline.Build) {
			r.println("")
			return
		}
		r.phaseSummary(ev.Title, ev.Items)
	case trace.EventArtifactsSelected:
		r.println("Copying validated artifacts to target directory...")
	case trace.EventArtifactsStaged:
		r.printf("%s\n\n", r.st.ok.Render(fmt.Sprintf("✓ Copied %d validated artifacts", ev.Count)))
	case trace.EventBuildSkipped:
		r.println(r.st.warn.Render("⚠ " + ev.Tool + " not found, skipping build step."))
	case trace.EventBuildStep:
		if !r.buildStarted {
			r.buildStarted = true
			r.printf("Building artifacts using %s...\n\n", strings.ToUpper(ev.Tool))
		}
		line := ev.Tool + " " + ev.Subtask
		if ev.OK {
			r.println(r.st.ok.Render("✓ " + line))
		} else {
			r.println(r.st.fail.Render("❌ " + line))
		}
	}
}

// Final prints the closing block for a run: the metrics when the build phase
// produced them, then the verdict and the elapsed time.
func (r *Reporter) Final(out *pipeline.Outcome, runErr error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if errors.Is(runErr, core.ErrInterrupted) {
		r.printf("\n\n%s\n", r.st.warn.Render("⚠ Pipeline interrupted by user."))
		return
	}
	if out != nil && out.Metrics != nil {
		r.metrics(*out.Metrics)
	}
	if runErr != nil {
		r.printf("\n%s\n", r.st.fail.Render("❌ Pipeline failed with error: "+runErr.Error()))
		return
	}

	if out != nil && !out.Plan.Includes(pipeline.Build) {
		r.println(r.st.ok.Render("✓ Analysis complete."))
		r.printf("\nTotal execution time: %.2f seconds\n", elapsed.Seconds())
		return
	}
	if out.BuildSkipped() {
		r.println(r.st.warn.Render("⚠ Pipeline completed with warnings"))
	} else {
		r.println(r.st.ok.Render("✓ Pipeline completed successfully"))
	}
	r.printf("Total execution time: %.2f seconds\n\n", elapsed.Seconds())
}

// Fail reports a problem that stopped the invocation before the engine ran.
func (r *Reporter) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.st.fail.Render("❌ "+msg))
}

func (r *Reporter) metrics(m metrics.Metrics) {
	r.banner("PIPELINE EXECUTION SUMMARY")
	r.printf("Total Artifacts Processed:    %d\n", m.TotalArtifacts)
	r.printf("Successful Transformations:   %d\n", m.SuccessfulTransforms)
	r.printf("Artifacts Built:              %d\n", m.CopiedArtifacts)
	r.printf("\nTransformation Success Rate:  %.2f%%\n", m.TransformSuccessRate)
	r.printf("Build Success Rate:           %.2f%%\n", m.BuildSuccessRate)
	r.printf("\n%s\n\n", r.st.rule.Render(strings.Repeat("=", bannerWidth)))
}

func (r *Reporter) phaseSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	r.printf("\n%s\n", r.st.section.Render(title+" Summary:"))
	r.println(strings.Repeat("-", summaryWidth))
	for i, item := range items {
		r.printf("  %d. %s\n", i+1, item)
	}
	r.println("")
}

func (r *Reporter) banner(title string) {
	rule := r.st.rule.Render(strings.Repeat("=", bannerWidth))
	r.printf("\n%s\n%s\n%s\n\n", rule, r.st.title.Render(title), rule)
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func (r *Reporter) println(s string) {
	_, _ = fmt.Fprintln(r.w, s)
}
