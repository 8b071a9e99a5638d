package model

import "fmt"

// Assignment places one activity on one unit of a resource.
type Assignment struct {
	Activity ActivityID
	Resource ResourceID
	// Mode is the index into the activity's Modes that was used.
	Mode int
	// Unit is which of the resource's Capacity units runs the activity.
	Unit  int
	Start Time
	End   Time
	// Setup precedes Start on the same unit.
	Setup Time
}

// Busy is the interval the unit is committed for, setup included.
func (a Assignment) Busy() Window {
	return Window{Start: a.Start - a.Setup, End: a.End}
}

func (a Assignment) String() string {
	return fmt.Sprintf("a%d@r%d.%d[%d+%d,%d)", a.Activity, a.Resource, a.Unit, a.Start-a.Setup, a.Setup, a.End)
}

// Schedule holds at most one Assignment per activity, indexed by ActivityID.
type Schedule struct {
	slots  []Assignment
	placed []bool
	count  int
}

func NewSchedule(activities int) *Schedule {
	return &Schedule{
		slots:  make([]Assignment, activities),
		placed: make([]bool, activities),
	}
}

// Place records a. Placing an activity twice is a programming error.
func (s *Schedule) Place(a Assignment) {
	if s.placed[a.Activity] {
		panic(fmt.Sprintf("activity %d placed twice", a.Activity))
	}
	s.slots[a.Activity] = a
	s.placed[a.Activity] = true
	s.count++
}

func (s *Schedule) Assignment(id ActivityID) (Assignment, bool) {
	if int(id) < 0 || int(id) >= len(s.slots) || !s.placed[id] {
		return Assignment{}, false
	}
	return s.slots[id], true
}

// Assignments returns the placed assignments in activity id order.
func (s *Schedule) Assignments() []Assignment {
	out := make([]Assignment, 0, s.count)
	for i, ok := range s.placed {
		if ok {
			out = append(out, s.slots[i])
		}
	}
	return out
}

func (s *Schedule) Len() int {
	return s.count
}

func (s *Schedule) Size() int {
	return len(s.slots)
}

func (s *Schedule) Complete() bool {
	return s.count == len(s.slots)
}

// Makespan is the latest End, or 0 for an empty schedule.
func (s *Schedule) Makespan() Time {
	var m Time
	for i, ok := range s.placed {
		if ok && s.slots[i].End > m {
			m = s.slots[i].End
		}
	}
	return m
}

// TaskCompletion is the latest End among the placed activities of t.
func (s *Schedule) TaskCompletion(p *Problem, t TaskID) Time {
	var c Time
	for _, a := range p.Tasks[t].Activities {
		if s.placed[a] && s.slots[a].End > c {
			c = s.slots[a].End
		}
	}
	return c
}

// Equal reports whether both schedules hold exactly the same assignments.
func (s *Schedule) Equal(o *Schedule) bool {
	if s.count != o.count || len(s.slots) != len(o.slots) {
		return false
	}
	for i := range s.slots {
		if s.placed[i] != o.placed[i] || (s.placed[i] && s.slots[i] != o.slots[i]) {
			return false
		}
	}
	return true
}

func (s *Schedule) Clone() *Schedule {
	return &Schedule{
		slots:  append([]Assignment(nil), s.slots...),
		placed: append([]bool(nil), s.placed...),
		count:  s.count,
	}
}
