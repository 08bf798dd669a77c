package pipeline

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFor(t *testing.T) {
	tests := []struct {
		mode Mode
		want []Phase
	}{
		{ModeAnalysis, []Phase{Extract, Validate, Analyze}},
		{ModeTransformBuild, []Phase{Extract, Validate, Transform, Build}},
		{ModeFull, []Phase{Extract, Validate, Analyze, Transform, Build}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			plan, err := PlanFor(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, plan.Mode)
			assert.Equal(t, tt.want, plan.Phases)
		})
	}
}

func TestPlanFor_IsPure(t *testing.T) {
	a, err := PlanFor(ModeFull)
	require.NoError(t, err)
	b, err := PlanFor(ModeFull)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	a.Phases[0] = Build
	c, err := PlanFor(ModeFull)
	require.NoError(t, err)
	assert.Equal(t, Extract, c.Phases[0])
}

func TestPlanFor_UnknownMode(t *testing.T) {
	_, err := PlanFor(Mode("nightly"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMode))

	var perr *PlanError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "nightly", perr.Msg)
}

func TestPlan_Includes(t *testing.T) {
	plan, err := PlanFor(ModeAnalysis)
	require.NoError(t, err)
	assert.True(t, plan.Includes(Analyze))
	assert.False(t, plan.Includes(Transform))
	assert.False(t, plan.Includes(Build))
}

func TestPlan_DOT(t *testing.T) {
	plan, err := PlanFor(ModeTransformBuild)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, plan.DOT(&buf, nil))
	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"extract" -> "validate"`)
	assert.Contains(t, out, `"validate" -> "transform"`)
	assert.Contains(t, out, `"transform" -> "build"`)
	assert.NotContains(t, out, `"analyze"`)
	assert.NotContains(t, out, "fillcolor")

	buf.Reset()
	require.NoError(t, plan.DOT(&buf, map[Phase]PhaseState{Extract: PhaseCompleted, Validate: PhaseFailed}))
	assert.Contains(t, buf.String(), "fillcolor")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Full ")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	_, err = ParseMode("everything")
	assert.Error(t, err)
}

func TestPhase_Metadata(t *testing.T) {
	assert.Equal(t, 1, Extract.Number())
	assert.Equal(t, 5, Build.Number())
	assert.Equal(t, "TRANSFORMATION", Transform.Title())
	assert.Equal(t, "Analysis", Analyze.Noun())
	assert.False(t, Phase("deploy").Valid())
}
