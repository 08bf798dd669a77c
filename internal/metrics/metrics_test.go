package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_ZeroTotalYieldsZeroRates(t *testing.T) {
	tcs := map[string]struct{ successful, copied int }{
		"nothing":             {0, 0},
		"inconsistent inputs": {5, 7},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			m := Calculate(0, tc.successful, tc.copied)
			assert.Equal(t, 0.0, m.TransformSuccessRate)
			assert.Equal(t, 0.0, m.BuildSuccessRate)
			assert.Equal(t, tc.successful, m.SuccessfulTransforms)
			assert.Equal(t, tc.copied, m.CopiedArtifacts)
		})
	}
}

func TestCalculate_Rates(t *testing.T) {
	m := Calculate(10, 8, 6)
	assert.Equal(t, Metrics{
		TotalArtifacts:       10,
		SuccessfulTransforms: 8,
		CopiedArtifacts:      6,
		TransformSuccessRate: 80.0,
		BuildSuccessRate:     60.0,
	}, m)
}

func TestCalculate_CopiedMayExceedTotal(t *testing.T) {
	// Stem matching can stage several files per selected record.
	m := Calculate(2, 1, 3)
	assert.InDelta(t, 50.0, m.TransformSuccessRate, 1e-9)
	assert.InDelta(t, 150.0, m.BuildSuccessRate, 1e-9)
}

func TestExporter_WritesTextfile(t *testing.T) {
	e := NewExporter("full", "snapshot-1", "billing")
	m := Calculate(4, 3, 2)
	e.Observe(&m, []PhaseTiming{
		{Phase: "extract", Status: "COMPLETED", Duration: 1500 * time.Millisecond},
		{Phase: "build", Status: "COMPLETED", Duration: time.Second},
	}, 3*time.Second)

	p := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, e.WriteTextfile(p))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `phaseweaver_artifacts{app="billing",kind="total",mode="full",snapshot="snapshot-1"} 4`)
	assert.Contains(t, out, `phaseweaver_success_rate_percent{app="billing",mode="full",snapshot="snapshot-1",stage="transform"} 75`)
	assert.Contains(t, out, `phaseweaver_phase_duration_seconds{app="billing",mode="full",phase="extract",snapshot="snapshot-1"} 1.5`)
	assert.Contains(t, out, `phaseweaver_run_duration_seconds{app="billing",mode="full",snapshot="snapshot-1"} 3`)
}

func TestExporter_NilMetricsOnlyPhases(t *testing.T) {
	e := NewExporter("analysis", "snapshot-1", "")
	e.Observe(nil, []PhaseTiming{{Phase: "extract", Status: "FAILED"}}, time.Second)

	families, err := e.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.NotContains(t, names, "phaseweaver_artifacts")
	assert.Contains(t, names, "phaseweaver_phase_status")
}
