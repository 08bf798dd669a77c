package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phaseweaver"

// PhaseTiming is the outcome of a single phase for export.
type PhaseTiming struct {
	Phase    string
	Status   string
	Duration time.Duration
}

// Exporter writes run metrics in the Prometheus text format, suitable for the
// node_exporter textfile collector. Each Exporter owns a private registry.
type Exporter struct {
	registry *prometheus.Registry

	artifacts     *prometheus.GaugeVec
	rates         *prometheus.GaugeVec
	phaseDuration *prometheus.GaugeVec
	phaseStatus   *prometheus.GaugeVec
	runDuration   prometheus.Gauge
}

// NewExporter creates an Exporter whose series carry the given run labels.
func NewExporter(mode, snapshot, app string) *Exporter {
	constLabels := prometheus.Labels{"mode": mode, "snapshot": snapshot, "app": app}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		artifacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "artifacts",
			Help:        "Artifact counts of the last run by kind (total, successful, copied).",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		rates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "success_rate_percent",
			Help:        "Success rates of the last run by stage (transform, build).",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		phaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "phase_duration_seconds",
			Help:        "Wall time spent in each phase of the last run.",
			ConstLabels: constLabels,
		}, []string{"phase"}),
		phaseStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "phase_status",
			Help:        "Terminal status of each phase of the last run (1 for the status reached).",
			ConstLabels: constLabels,
		}, []string{"phase", "status"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: constLabels,
		}),
	}
	e.registry.MustRegister(e.artifacts, e.rates, e.phaseDuration, e.phaseStatus, e.runDuration)
	return e
}

// Observe records the run's metrics, phase timings and total duration.
// m may be nil when the run never reached the build phase.
func (e *Exporter) Observe(m *Metrics, phases []PhaseTiming, total time.Duration) {
	if m != nil {
		e.artifacts.WithLabelValues("total").Set(float64(m.TotalArtifacts))
		e.artifacts.WithLabelValues("successful").Set(float64(m.SuccessfulTransforms))
		e.artifacts.WithLabelValues("copied").Set(float64(m.CopiedArtifacts))
		e.rates.WithLabelValues("transform").Set(m.TransformSuccessRate)
		e.rates.WithLabelValues("build").Set(m.BuildSuccessRate)
	}
	for _, p := range phases {
		e.phaseDuration.WithLabelValues(p.Phase).Set(p.Duration.Seconds())
		e.phaseStatus.WithLabelValues(p.Phase, p.Status).Set(1)
	}
	e.runDuration.Set(total.Seconds())
}

// Gatherer exposes the registry, mainly for tests.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// WriteTextfile writes the registry to path atomically.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}
	return nil
}
