package pipeline

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ValidAndInvalid(t *testing.T) {
	states := map[Phase]PhaseState{Extract: PhasePending}

	require.NoError(t, Transition(states, Extract, PhasePending, PhaseRunning))
	require.NoError(t, Transition(states, Extract, PhaseRunning, PhaseCompleted))

	// terminal -> RUNNING is forbidden
	err := Transition(states, Extract, PhaseCompleted, PhaseRunning)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransition))

	// stale expectation
	assert.Error(t, Transition(states, Extract, PhasePending, PhaseRunning))
	// unknown phase
	assert.Error(t, Transition(states, Build, PhasePending, PhaseRunning))

	states[Extract] = PhaseSkipped
	assert.Error(t, Transition(states, Extract, PhaseSkipped, PhaseRunning))
}

func TestMachine_HappyPath(t *testing.T) {
	plan, err := PlanFor(ModeAnalysis)
	require.NoError(t, err)
	m := NewMachine(plan)
	assert.Equal(t, StageStart, m.Current())

	for _, p := range plan.Phases {
		require.NoError(t, m.Enter(p))
		assert.Equal(t, Stage(p), m.Current())
		assert.Equal(t, PhaseRunning, m.State(p))
		require.NoError(t, m.Complete(p))
	}
	require.NoError(t, m.Finish())
	assert.Equal(t, StageDone, m.Current())

	assert.Error(t, m.Enter(Transform), "no phase may be entered after done")
	_, err = m.Abort()
	assert.Error(t, err)
}

func TestMachine_RejectsOutOfOrderAndEarlyFinish(t *testing.T) {
	plan, err := PlanFor(ModeFull)
	require.NoError(t, err)
	m := NewMachine(plan)

	assert.Error(t, m.Enter(Validate))
	require.NoError(t, m.Enter(Extract))
	assert.Error(t, m.Enter(Validate), "extract has not completed")
	assert.Error(t, m.Complete(Validate))
	assert.Error(t, m.Finish())
}

func TestMachine_AbortSkipsRemainingPhases(t *testing.T) {
	plan, err := PlanFor(ModeFull)
	require.NoError(t, err)
	m := NewMachine(plan)

	require.NoError(t, m.Enter(Extract))
	require.NoError(t, m.Complete(Extract))
	require.NoError(t, m.Enter(Validate))

	skipped, err := m.Abort()
	require.NoError(t, err)
	assert.Equal(t, []Phase{Analyze, Transform, Build}, skipped)
	assert.Equal(t, StageAborted, m.Current())
	assert.Equal(t, map[Phase]PhaseState{
		Extract:   PhaseCompleted,
		Validate:  PhaseFailed,
		Analyze:   PhaseSkipped,
		Transform: PhaseSkipped,
		Build:     PhaseSkipped,
	}, m.States())

	assert.Error(t, m.Enter(Analyze))
	assert.Error(t, m.Finish())
}

func TestMachine_AbortBeforeAnyPhase(t *testing.T) {
	plan, err := PlanFor(ModeAnalysis)
	require.NoError(t, err)
	m := NewMachine(plan)

	skipped, err := m.Abort()
	require.NoError(t, err)
	assert.Equal(t, plan.Phases, skipped)
}
