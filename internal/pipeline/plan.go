package pipeline

import (
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"
)

// dependsOn lists, for each phase, the phases that must complete before it
// when they are part of the plan.
var dependsOn = map[Phase][]Phase{
	Validate:  {Extract},
	Analyze:   {Validate},
	Transform: {Validate, Analyze},
	Build:     {Transform},
}

var modePhases = map[Mode][]Phase{
	ModeAnalysis:       {Extract, Validate, Analyze},
	ModeTransformBuild: {Extract, Validate, Transform, Build},
	ModeFull:           {Extract, Validate, Analyze, Transform, Build},
}

// Plan is the immutable, ordered list of phases a run executes.
type Plan struct {
	Mode   Mode
	Phases []Phase
}

// PlanFor derives the plan of a mode. It has no side effects.
func PlanFor(mode Mode) (Plan, error) {
	phases, ok := modePhases[mode]
	if !ok {
		return Plan{}, &PlanError{Kind: ErrUnknownMode, Msg: string(mode)}
	}

	g, err := buildGraph(phases, nil)
	if err != nil {
		return Plan{}, err
	}
	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return Phase(a).Number() < Phase(b).Number()
	})
	if err != nil {
		return Plan{}, &PlanError{Kind: ErrInvalidPlan, Msg: err.Error()}
	}

	plan := Plan{Mode: mode, Phases: make([]Phase, 0, len(order))}
	for _, name := range order {
		plan.Phases = append(plan.Phases, Phase(name))
	}
	return plan, nil
}

// Includes reports whether p is part of the plan.
func (p Plan) Includes(phase Phase) bool {
	for _, q := range p.Phases {
		if q == phase {
			return true
		}
	}
	return false
}

// DOT renders the plan's dependency graph in Graphviz format. When states is
// non-nil, each phase is filled with the color of its state.
func (p Plan) DOT(w io.Writer, states map[Phase]PhaseState) error {
	g, err := buildGraph(p.Phases, states)
	if err != nil {
		return err
	}
	if err := draw.DOT(g, w, draw.GraphAttribute("rankdir", "LR")); err != nil {
		return errors.Wrap(err, "unable to render plan")
	}
	return nil
}

func buildGraph(phases []Phase, states map[Phase]PhaseState) (graph.Graph[string, Phase], error) {
	g := graph.New(func(p Phase) string { return string(p) }, graph.Directed(), graph.Acyclic(), graph.PreventCycles())

	included := make(map[Phase]bool, len(phases))
	for _, p := range phases {
		if !p.Valid() {
			return nil, &PlanError{Kind: ErrInvalidPlan, Msg: "unknown phase " + string(p)}
		}
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("label", p.Title()),
			graph.VertexAttribute("shape", "box"),
		}
		if st, ok := states[p]; ok {
			fill, err := stateColor(st)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs,
				graph.VertexAttribute("style", "filled"),
				graph.VertexAttribute("fillcolor", fill),
			)
		}
		if err := g.AddVertex(p, attrs...); err != nil {
			return nil, errors.Wrapf(err, "unable to add phase %s", p)
		}
		included[p] = true
	}

	for _, p := range phases {
		for _, dep := range dependsOn[p] {
			if !included[dep] {
				continue
			}
			if err := g.AddEdge(string(dep), string(p)); err != nil {
				return nil, errors.Wrapf(err, "unable to add edge from %s to %s", dep, p)
			}
		}
	}
	return g, nil
}

func stateColor(st PhaseState) (string, error) {
	var r, g, b uint8
	switch st {
	case PhaseCompleted:
		r, g, b = 144, 238, 144
	case PhaseFailed:
		r, g, b = 255, 99, 71
	case PhaseRunning:
		r, g, b = 255, 215, 0
	case PhaseSkipped:
		r, g, b = 211, 211, 211
	default:
		r, g, b = 255, 255, 255
	}
	c, err := colors.RGB(r, g, b)
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}
	return c.ToHEX().String(), nil
}
