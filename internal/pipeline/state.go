package pipeline

// PhaseState is the runtime state of one phase in a run.
type PhaseState string

const (
	PhasePending   PhaseState = "PENDING"
	PhaseRunning   PhaseState = "RUNNING"
	PhaseCompleted PhaseState = "COMPLETED"
	PhaseFailed    PhaseState = "FAILED"
	PhaseSkipped   PhaseState = "SKIPPED"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s PhaseState) bool {
	switch s {
	case PhaseCompleted, PhaseFailed, PhaseSkipped:
		return true
	default:
		return false
	}
}

// Transition performs a validated transition for a single phase.
//
// The caller supplies the expected prior state (from). The map is mutated if
// and only if the transition is valid.
func Transition(states map[Phase]PhaseState, p Phase, from, to PhaseState) error {
	cur, ok := states[p]
	if !ok {
		return transitionf("unknown phase in state: %q", p)
	}
	if cur != from {
		return transitionf("%s: expected %s, got %s", p, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return transitionf("%s: %s -> %s", p, from, to)
	}
	states[p] = to
	return nil
}

func isAllowedTransition(from, to PhaseState) bool {
	switch from {
	case PhasePending:
		return to == PhaseRunning || to == PhaseSkipped
	case PhaseRunning:
		return to == PhaseCompleted || to == PhaseFailed
	default:
		return false
	}
}

// Stage is the position of the whole pipeline: StageStart, the phase being
// run, StageDone, or StageAborted.
type Stage string

const (
	StageStart   Stage = "start"
	StageDone    Stage = "done"
	StageAborted Stage = "aborted"
)

// Machine walks a plan: Start -> each phase in order -> Done. Any failure
// moves it to Aborted, after which no phase can be entered.
type Machine struct {
	plan    Plan
	states  map[Phase]PhaseState
	current Stage
	next    int
}

// NewMachine creates a machine with every planned phase PENDING.
func NewMachine(plan Plan) *Machine {
	states := make(map[Phase]PhaseState, len(plan.Phases))
	for _, p := range plan.Phases {
		states[p] = PhasePending
	}
	return &Machine{plan: plan, states: states, current: StageStart}
}

// Current returns the pipeline stage.
func (m *Machine) Current() Stage { return m.current }

// State returns the state of a planned phase.
func (m *Machine) State(p Phase) PhaseState { return m.states[p] }

// States returns a copy of every phase state.
func (m *Machine) States() map[Phase]PhaseState {
	cp := make(map[Phase]PhaseState, len(m.states))
	for k, v := range m.states {
		cp[k] = v
	}
	return cp
}

// Enter starts p. It must be the next planned phase and the previous one
// must have completed.
func (m *Machine) Enter(p Phase) error {
	if m.current == StageDone || m.current == StageAborted {
		return transitionf("cannot enter %s from %s", p, m.current)
	}
	if m.next >= len(m.plan.Phases) || m.plan.Phases[m.next] != p {
		return transitionf("cannot enter %s out of order", p)
	}
	if m.next > 0 && m.states[m.plan.Phases[m.next-1]] != PhaseCompleted {
		return transitionf("cannot enter %s before %s completed", p, m.plan.Phases[m.next-1])
	}
	if err := Transition(m.states, p, PhasePending, PhaseRunning); err != nil {
		return err
	}
	m.current = Stage(p)
	return nil
}

// Complete marks the running phase p as completed.
func (m *Machine) Complete(p Phase) error {
	if m.current != Stage(p) {
		return transitionf("cannot complete %s while at %s", p, m.current)
	}
	if err := Transition(m.states, p, PhaseRunning, PhaseCompleted); err != nil {
		return err
	}
	m.next++
	return nil
}

// Finish moves to Done once every planned phase completed.
func (m *Machine) Finish() error {
	if m.current == StageAborted {
		return transitionf("cannot finish an aborted run")
	}
	if m.next != len(m.plan.Phases) {
		return transitionf("cannot finish with %d of %d phases completed", m.next, len(m.plan.Phases))
	}
	m.current = StageDone
	return nil
}

// Abort fails the running phase, if any, and skips every phase not yet
// entered. It returns the skipped phases in plan order.
func (m *Machine) Abort() ([]Phase, error) {
	if m.current == StageDone || m.current == StageAborted {
		return nil, transitionf("cannot abort from %s", m.current)
	}
	if m.current != StageStart {
		running := Phase(m.current)
		if m.states[running] == PhaseRunning {
			if err := Transition(m.states, running, PhaseRunning, PhaseFailed); err != nil {
				return nil, err
			}
		}
	}

	var skipped []Phase
	for _, p := range m.plan.Phases {
		if m.states[p] != PhasePending {
			continue
		}
		if err := Transition(m.states, p, PhasePending, PhaseSkipped); err != nil {
			return nil, err
		}
		skipped = append(skipped, p)
	}
	m.current = StageAborted
	return skipped, nil
}
