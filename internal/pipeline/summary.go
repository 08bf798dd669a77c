package pipeline

// Summary records the sub-tasks that completed, per phase, in order.
// It is append-only and belongs to a single engine.
type Summary struct {
	items map[Phase][]string
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{items: make(map[Phase][]string, len(AllPhases))}
}

// Append records a completed sub-task.
func (s *Summary) Append(p Phase, descriptor string) {
	s.items[p] = append(s.items[p], descriptor)
}

// Items returns a copy of the completed descriptors of p.
func (s *Summary) Items(p Phase) []string {
	return append([]string{}, s.items[p]...)
}

// Map returns every phase, including those with nothing recorded, keyed by
// name.
func (s *Summary) Map() map[string][]string {
	out := make(map[string][]string, len(AllPhases))
	for _, p := range AllPhases {
		out[string(p)] = s.Items(p)
	}
	return out
}
