package dispatch

import "shopsched/model"

// Context is the simulation state a rule looks at. ReadyAt is indexed by activity,
// RemainingWork and RemainingOps by task; both count the unplaced activities of the task.
type Context struct {
	Problem       *model.Problem
	Now           model.Time
	ReadyAt       []model.Time
	RemainingWork []model.Time
	RemainingOps  []int
}

// NewContext returns the state before anything is placed.
func NewContext(p *model.Problem) *Context {
	ctx := &Context{
		Problem:       p,
		ReadyAt:       make([]model.Time, len(p.Activities)),
		RemainingWork: make([]model.Time, len(p.Tasks)),
		RemainingOps:  make([]int, len(p.Tasks)),
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		ctx.RemainingWork[i] = t.Work()
		ctx.RemainingOps[i] = len(t.Activities)
		for _, a := range t.Activities {
			ctx.ReadyAt[a] = max(t.Release, 0)
		}
	}
	return ctx
}

// Complete removes a from its task's remaining work.
func (c *Context) Complete(a model.ActivityID) {
	act := c.Problem.Activity(a)
	c.RemainingWork[act.Task] -= act.MinDuration()
	c.RemainingOps[act.Task]--
}
