// Package metrics derives the pipeline's success figures from the artifact
// selection and staging results, and exports them for scraping.
package metrics

// Metrics is the aggregate outcome of a run's transform and staging steps.
// It is computed once by Calculate and never mutated afterwards.
type Metrics struct {
	TotalArtifacts       int     `json:"total_artifacts" yaml:"total_artifacts"`
	SuccessfulTransforms int     `json:"successful_transforms" yaml:"successful_transforms"`
	CopiedArtifacts      int     `json:"copied_artifacts" yaml:"copied_artifacts"`
	TransformSuccessRate float64 `json:"transform_success_rate" yaml:"transform_success_rate"`
	BuildSuccessRate     float64 `json:"build_success_rate" yaml:"build_success_rate"`
}

// Calculate computes the metrics for total qualifying log records, successful
// (selected) transforms and copied files. Both rates are percentages of total
// and are 0 when total is 0.
func Calculate(total, successful, copied int) Metrics {
	return Metrics{
		TotalArtifacts:       total,
		SuccessfulTransforms: successful,
		CopiedArtifacts:      copied,
		TransformSuccessRate: rate(successful, total),
		BuildSuccessRate:     rate(copied, total),
	}
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
