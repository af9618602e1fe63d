package rollup

import (
	"fmt"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
	"github.com/aevon-lab/aevon-rollup/internal/model"
	"github.com/aevon-lab/aevon-rollup/internal/query"
)

// Step is one definition of a plan.
type Step struct {
	Order     int // 1-based emission rank
	Entity    model.PhysicalEntity
	Statement query.Statement
	Upstream  []string // objects the definition reads
}

// Role returns the role of the step's entity.
func (s Step) Role() aggregation.Role { return s.Entity.Role }

// Name returns the physical object the step declares.
func (s Step) Name() string { return s.Entity.Topic }

// Plan is the ordered set of definitions implied by one spec.
type Plan struct {
	Spec  *aggregation.Spec
	Steps []Step
}

// Names returns the declared object names in emission order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Name()
	}
	return out
}

// Verify checks that names are unique, that every upstream is either external
// to the plan or declared by an earlier step, and that the dependency graph
// is acyclic.
func (p *Plan) Verify() error {
	g, err := p.graph()
	if err != nil {
		return err
	}

	declared := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		declared[s.Name()] = i
	}
	for i, s := range p.Steps {
		for _, up := range s.Upstream {
			j, internal := declared[up]
			if internal && j >= i {
				return fmt.Errorf("step %d (%s %s) reads %s before it is declared", s.Order, s.Role(), s.Name(), up)
			}
		}
	}

	if cyclic, path := g.hasCycle(); cyclic {
		return fmt.Errorf("dependency cycle: %v", path)
	}
	return nil
}

// Dependents returns every declared object that transitively reads name.
func (p *Plan) Dependents(name string) []string {
	g, err := p.graph()
	if err != nil {
		return nil
	}
	return g.dependents(name)
}

func (p *Plan) graph() (*graph, error) {
	g := newGraph()
	for _, s := range p.Steps {
		if s.Name() == "" {
			return nil, fmt.Errorf("step %d (%s) has no physical name", s.Order, s.Role())
		}
		if _, dup := g.nodes[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate object %s", s.Name())
		}
		g.addNode(s.Name(), false)
	}
	for _, s := range p.Steps {
		for _, up := range s.Upstream {
			if _, known := g.nodes[up]; !known {
				g.addNode(up, true)
			}
			if err := g.addEdge(up, s.Name()); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
