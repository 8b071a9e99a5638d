// Package model holds the read-only description of a scheduling problem and the
// schedules built for it.
//
// Entities live in flat arenas indexed by dense integer ids: an ActivityID is the index of
// the activity in Problem.Activities, and predecessor/successor links are id lists. A
// finalized Problem is never mutated and may be shared by any number of concurrent
// scheduling attempts.
package model

import (
	"errors"
	"fmt"
	"slices"
)

type (
	TaskID     int
	ActivityID int
	ResourceID int
)

// NoActivity marks the absence of an activity, e.g. an idle resource unit.
const NoActivity ActivityID = -1

// Mode is one way to run an activity: on Resource, taking Duration.
type Mode struct {
	Resource ResourceID
	Duration Time
}

// Activity is a single operation of a task.
type Activity struct {
	ID   ActivityID
	Task TaskID
	Name string
	// Type selects setup times in the transition matrix. Defaults to the task category.
	Type string
	// Modes lists the eligible resources; index 0 is the default choice.
	Modes        []Mode
	Predecessors []ActivityID

	successors []ActivityID
	minimum    Time
}

// Successors returns the activities that directly depend on a.
func (a *Activity) Successors() []ActivityID {
	return a.successors
}

// MinDuration is the shortest processing time over all modes.
func (a *Activity) MinDuration() Time {
	return a.minimum
}

// ModeOn returns the index of the mode running on r.
func (a *Activity) ModeOn(r ResourceID) (int, bool) {
	for i, m := range a.Modes {
		if m.Resource == r {
			return i, true
		}
	}
	return -1, false
}

// Task is a job: a weighted, optionally due, set of activities.
type Task struct {
	ID       TaskID
	Name     string
	Category string
	Weight   float64
	Due      Time
	HasDue   bool
	// Release is the earliest time any activity of the task may start.
	Release    Time
	Activities []ActivityID

	work Time
}

// Work is the summed MinDuration of the task's activities.
func (t *Task) Work() Time {
	return t.work
}

// Resource is a machine (Capacity 1) or a pool of Capacity interchangeable units.
type Resource struct {
	ID       ResourceID
	Name     string
	Capacity int
	Calendar *Calendar
}

// Problem is the arena holding a complete scheduling input.
type Problem struct {
	Tasks       []Task
	Activities  []Activity
	Resources   []Resource
	Transitions TransitionMatrix

	meanDuration float64
	finalized    bool
}

var ErrFinalized = errors.New("problem is finalized")

func NewProblem() *Problem {
	return &Problem{}
}

// AddResource appends r and returns its id.
func (p *Problem) AddResource(r Resource) ResourceID {
	p.mustBeOpen()
	r.ID = ResourceID(len(p.Resources))
	p.Resources = append(p.Resources, r)
	return r.ID
}

func (p *Problem) AddTask(t Task) TaskID {
	p.mustBeOpen()
	t.ID = TaskID(len(p.Tasks))
	t.Activities = nil
	p.Tasks = append(p.Tasks, t)
	return t.ID
}

// AddActivity appends a to task and returns its id.
func (p *Problem) AddActivity(task TaskID, a Activity) ActivityID {
	p.mustBeOpen()
	a.ID = ActivityID(len(p.Activities))
	a.Task = task
	a.Modes = slices.Clone(a.Modes)
	a.Predecessors = slices.Clone(a.Predecessors)
	p.Activities = append(p.Activities, a)
	if int(task) >= 0 && int(task) < len(p.Tasks) {
		p.Tasks[task].Activities = append(p.Tasks[task].Activities, a.ID)
	}
	return a.ID
}

// Chain adds activities to task, each depending on the one before it.
func (p *Problem) Chain(task TaskID, activities ...Activity) []ActivityID {
	ids := make([]ActivityID, 0, len(activities))
	for i, a := range activities {
		if i > 0 {
			a.Predecessors = append(slices.Clone(a.Predecessors), ids[i-1])
		}
		ids = append(ids, p.AddActivity(task, a))
	}
	return ids
}

// SetTransition records the setup needed on r when an activity of type to follows one of
// type from.
func (p *Problem) SetTransition(r ResourceID, from, to string, setup Time) {
	p.mustBeOpen()
	p.Transitions.Set(r, from, to, setup)
}

// Finalize checks references, fills derived data and freezes the problem. Cycle and
// duplicate detection are the caller's responsibility.
func (p *Problem) Finalize() error {
	if p.finalized {
		return ErrFinalized
	}
	for i := range p.Resources {
		if p.Resources[i].Capacity < 1 {
			p.Resources[i].Capacity = 1
		}
	}
	var total Time
	for i := range p.Activities {
		a := &p.Activities[i]
		if int(a.Task) < 0 || int(a.Task) >= len(p.Tasks) {
			return fmt.Errorf("activity %d: unknown task %d", a.ID, a.Task)
		}
		if a.Type == "" {
			a.Type = p.Tasks[a.Task].Category
		}
		a.successors = nil
		a.minimum = 0
		for j, m := range a.Modes {
			if int(m.Resource) < 0 || int(m.Resource) >= len(p.Resources) {
				return fmt.Errorf("activity %d mode %d: unknown resource %d", a.ID, j, m.Resource)
			}
			if m.Duration <= 0 {
				return fmt.Errorf("activity %d mode %d: duration must be > 0 (got %d)", a.ID, j, m.Duration)
			}
			if j == 0 || m.Duration < a.minimum {
				a.minimum = m.Duration
			}
		}
		for _, pred := range a.Predecessors {
			if int(pred) < 0 || int(pred) >= len(p.Activities) {
				return fmt.Errorf("activity %d: unknown predecessor %d", a.ID, pred)
			}
		}
		total += a.minimum
	}
	for i := range p.Activities {
		for _, pred := range p.Activities[i].Predecessors {
			p.Activities[pred].successors = append(p.Activities[pred].successors, ActivityID(i))
		}
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.Weight <= 0 {
			t.Weight = 1
		}
		t.work = 0
		for _, a := range t.Activities {
			t.work += p.Activities[a].minimum
		}
	}
	if len(p.Activities) > 0 {
		p.meanDuration = float64(total) / float64(len(p.Activities))
	}
	p.finalized = true
	return nil
}

func (p *Problem) Finalized() bool {
	return p.finalized
}

func (p *Problem) mustBeOpen() {
	if p.finalized {
		panic(ErrFinalized)
	}
}

func (p *Problem) Activity(id ActivityID) *Activity {
	return &p.Activities[id]
}

func (p *Problem) Task(id TaskID) *Task {
	return &p.Tasks[id]
}

func (p *Problem) Resource(id ResourceID) *Resource {
	return &p.Resources[id]
}

// TaskOf returns the task owning activity a.
func (p *Problem) TaskOf(a ActivityID) *Task {
	return &p.Tasks[p.Activities[a].Task]
}

// MeanDuration is the average MinDuration over all activities.
func (p *Problem) MeanDuration() float64 {
	return p.meanDuration
}

// Setup returns the setup needed on r between two activities. prev == NoActivity means the
// resource is idle and no setup applies.
func (p *Problem) Setup(r ResourceID, prev, next ActivityID) Time {
	if prev == NoActivity {
		return 0
	}
	return p.Transitions.Setup(r, p.Activities[prev].Type, p.Activities[next].Type)
}
