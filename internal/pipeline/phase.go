package pipeline

import (
	"fmt"
	"strings"
)

// Phase names one step of the pipeline.
type Phase string

const (
	Extract   Phase = "extract"
	Validate  Phase = "validate"
	Analyze   Phase = "analyze"
	Transform Phase = "transform"
	Build     Phase = "build"
)

// AllPhases lists every phase in execution order.
var AllPhases = []Phase{Extract, Validate, Analyze, Transform, Build}

type phaseInfo struct {
	number int
	title  string
	noun   string
}

var phaseInfos = map[Phase]phaseInfo{
	Extract:   {1, "EXTRACTION", "Extraction"},
	Validate:  {2, "VALIDATION", "Validation"},
	Analyze:   {3, "ANALYSIS", "Analysis"},
	Transform: {4, "TRANSFORMATION", "Transformation"},
	Build:     {5, "BUILD", "Build"},
}

// Number is the phase's 1-based position in AllPhases, or 0 if unknown.
func (p Phase) Number() int { return phaseInfos[p].number }

// Title is the banner title, e.g. "EXTRACTION".
func (p Phase) Title() string { return phaseInfos[p].title }

// Noun is the summary heading, e.g. "Extraction".
func (p Phase) Noun() string { return phaseInfos[p].noun }

// Valid reports whether p is one of AllPhases.
func (p Phase) Valid() bool {
	_, ok := phaseInfos[p]
	return ok
}

// Mode selects which phases a run executes.
type Mode string

const (
	// ModeAnalysis runs extract, validate and analyze.
	ModeAnalysis Mode = "analysis"
	// ModeTransformBuild runs extract, validate, transform and build.
	ModeTransformBuild Mode = "transform-build"
	// ModeFull runs every phase.
	ModeFull Mode = "full"
)

// Modes lists the accepted modes in menu order.
var Modes = []Mode{ModeAnalysis, ModeTransformBuild, ModeFull}

// Label is the human-readable mode name.
func (m Mode) Label() string {
	switch m {
	case ModeAnalysis:
		return "Analysis Only"
	case ModeTransformBuild:
		return "Transform and Build"
	case ModeFull:
		return "Full Pipeline"
	default:
		return "Unknown"
	}
}

// ParseMode accepts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want one of %s, %s, %s)", s, ModeAnalysis, ModeTransformBuild, ModeFull)
}
