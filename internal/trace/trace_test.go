package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicSink struct{}

func (panicSink) Record(Event) { panic("boom") }

func TestRecorder_AssignsSequenceInOrder(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventPhaseStarted, Phase: "extract", Number: 1})
	r.Record(Event{Kind: EventSubtaskSucceeded, Phase: "extract", Subtask: "metadata"})

	events := r.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, 2, events[1].Seq)
	assert.Equal(t, "metadata", events[1].Subtask)
}

func TestRecorder_CopiesItems(t *testing.T) {
	r := NewRecorder()
	items := []string{"source-files", "metadata"}
	r.Record(Event{Kind: EventPhaseCompleted, Phase: "extract", Items: items})
	items[0] = "mutated"

	assert.Equal(t, []string{"source-files", "metadata"}, r.Snapshot()[0].Items)
}

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		SafeRecord(panicSink{}, Event{Kind: EventBuildSkipped})
		SafeRecord(nil, Event{Kind: EventBuildSkipped})
	})
}

func TestMulti_ContinuesPastBrokenSink(t *testing.T) {
	r := NewRecorder()
	Multi{panicSink{}, nil, r}.Record(Event{Kind: EventBuildSkipped, Tool: "ant"})

	require.Len(t, r.Snapshot(), 1)
	assert.Equal(t, "ant", r.Snapshot()[0].Tool)
}

func TestRunTrace_Validate(t *testing.T) {
	assert.Error(t, (*RunTrace)(nil).Validate())
	assert.Error(t, (&RunTrace{}).Validate())
	assert.Error(t, (&RunTrace{RunID: "r", Events: []Event{{}}}).Validate())
	assert.Error(t, (&RunTrace{RunID: "r", Events: []Event{{Kind: EventPhaseStarted}}}).Validate())
	assert.NoError(t, (&RunTrace{RunID: "r", Events: []Event{{Kind: EventArtifactsStaged, Count: 2}}}).Validate())
}

func TestRunTrace_WriteAndReadFile(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventPhaseStarted, Phase: "build", Number: 5, Title: "BUILD"})
	r.Record(Event{Kind: EventArtifactsStaged, Phase: "build", Count: 3})
	r.Record(Event{Kind: EventBuildSkipped, Phase: "build", Tool: "ant", Reason: "ToolNotFound"})

	path := filepath.Join(t.TempDir(), "runlogs", "events.json")
	tr := r.Trace("run-1")
	require.NoError(t, tr.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tr, got)
	assert.Len(t, got.Filter(EventBuildSkipped, EventArtifactsStaged), 2)
}

func TestRunTrace_WriteFileRejectsInvalid(t *testing.T) {
	err := RunTrace{}.WriteFile(filepath.Join(t.TempDir(), "events.json"))
	assert.Error(t, err)
}
