package model

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type transitionKey struct {
	resource ResourceID
	from, to string
}

// TransitionMatrix maps (resource, from type, to type) to a setup time. Missing entries
// mean no setup. The zero value is empty and ready to use.
type TransitionMatrix struct {
	setups map[transitionKey]Time
}

func (m *TransitionMatrix) Set(r ResourceID, from, to string, setup Time) {
	if m.setups == nil {
		m.setups = make(map[transitionKey]Time)
	}
	m.setups[transitionKey{r, from, to}] = max(setup, 0)
}

func (m *TransitionMatrix) Setup(r ResourceID, from, to string) Time {
	return m.setups[transitionKey{r, from, to}]
}

func (m *TransitionMatrix) Len() int {
	return len(m.setups)
}

// ConstraintKind distinguishes the constraint families exposed to external formulations.
type ConstraintKind int

const (
	// Precedence requires Activities[0] to finish before Activities[1] starts.
	Precedence ConstraintKind = iota
	// Exclusive lists the activities competing for Resource; at most Capacity of them
	// may be committed at once.
	Exclusive
)

func (k ConstraintKind) String() string {
	return [...]string{"precedence", "exclusive"}[k]
}

type Constraint struct {
	Kind       ConstraintKind
	Resource   ResourceID
	Activities []ActivityID
}

// Constraints lists every precedence edge, then one exclusivity group per resource that
// has eligible activities. It is the read model for constraint-programming layers.
func (p *Problem) Constraints() []Constraint {
	var out []Constraint
	for i := range p.Activities {
		for _, pred := range p.Activities[i].Predecessors {
			out = append(out, Constraint{Kind: Precedence, Resource: -1,
				Activities: []ActivityID{pred, ActivityID(i)}})
		}
	}
	groups := make([]mapset.Set[ActivityID], len(p.Resources))
	for i := range p.Activities {
		for _, m := range p.Activities[i].Modes {
			if groups[m.Resource] == nil {
				groups[m.Resource] = mapset.NewThreadUnsafeSet[ActivityID]()
			}
			groups[m.Resource].Add(ActivityID(i))
		}
	}
	for r, g := range groups {
		if g == nil {
			continue
		}
		ids := g.ToSlice()
		slices.Sort(ids)
		out = append(out, Constraint{Kind: Exclusive, Resource: ResourceID(r), Activities: ids})
	}
	return out
}
