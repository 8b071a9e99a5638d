package sched

import (
	"shopsched/dispatch"
	"shopsched/model"
)

// RuleSequencer picks with a dispatching rule.
type RuleSequencer struct {
	Engine *dispatch.Engine
}

func (s RuleSequencer) Select(ctx *dispatch.Context, candidates []model.ActivityID) model.ActivityID {
	return s.Engine.Best(ctx, candidates)
}

type allModes [][]int

// AllModes lets the construction use every eligible resource of every activity.
func AllModes(p *model.Problem) Router {
	modes := make(allModes, len(p.Activities))
	for i := range p.Activities {
		modes[i] = make([]int, len(p.Activities[i].Modes))
		for m := range modes[i] {
			modes[i][m] = m
		}
	}
	return modes
}

func (m allModes) Modes(a model.ActivityID) []int {
	return m[a]
}

// Greedy builds one schedule, dispatching with e and free to pick any eligible resource.
func Greedy(p *model.Problem, e *dispatch.Engine, opts Options) (*model.Schedule, error) {
	return Build(p, RuleSequencer{Engine: e}, AllModes(p), opts)
}
