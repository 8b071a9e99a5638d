package model

import (
	"cmp"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type ViolationKind int

const (
	Missing ViolationKind = iota
	Ineligible
	WrongDuration
	NegativeStart
	BrokenPrecedence
	Overlap
	OutsideCalendar
)

func (k ViolationKind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Ineligible:
		return "ineligible"
	case WrongDuration:
		return "duration"
	case NegativeStart:
		return "negative start"
	case BrokenPrecedence:
		return "precedence"
	case Overlap:
		return "overlap"
	case OutsideCalendar:
		return "calendar"
	}
	return fmt.Sprintf("ViolationKind(%d)", int(k))
}

// Violation is one broken feasibility rule.
type Violation struct {
	Kind     ViolationKind
	Activity ActivityID
	Resource ResourceID
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: activity %d: %s", v.Kind, v.Activity, v.Message)
}

// Check verifies s against p: every activity placed once on an eligible resource with the
// mode's duration, no negative start, every precedence edge respected, no two busy
// intervals overlapping on a resource unit, every busy interval inside a calendar window.
// A nil result means s is feasible.
func Check(p *Problem, s *Schedule) []Violation {
	var out []Violation
	add := func(kind ViolationKind, a ActivityID, r ResourceID, format string, args ...any) {
		out = append(out, Violation{Kind: kind, Activity: a, Resource: r, Message: fmt.Sprintf(format, args...)})
	}
	if s.Size() != len(p.Activities) {
		add(Missing, NoActivity, -1, "schedule sized for %d activities, problem has %d", s.Size(), len(p.Activities))
		return out
	}

	type unitKey struct {
		r    ResourceID
		unit int
	}
	timelines := make(map[unitKey][]Assignment)
	for i := range p.Activities {
		act := &p.Activities[i]
		a, ok := s.Assignment(act.ID)
		if !ok {
			add(Missing, act.ID, -1, "not placed")
			continue
		}
		if a.Mode < 0 || a.Mode >= len(act.Modes) || act.Modes[a.Mode].Resource != a.Resource {
			add(Ineligible, act.ID, a.Resource, "resource %d is not mode %d", a.Resource, a.Mode)
			continue
		}
		if a.Unit < 0 || a.Unit >= p.Resources[a.Resource].Capacity {
			add(Ineligible, act.ID, a.Resource, "unit %d beyond capacity %d", a.Unit, p.Resources[a.Resource].Capacity)
			continue
		}
		if d := act.Modes[a.Mode].Duration; a.End-a.Start != d || a.End <= a.Start {
			add(WrongDuration, act.ID, a.Resource, "[%d, %d) does not last %d", a.Start, a.End, d)
		}
		if a.Setup < 0 || a.Start-a.Setup < 0 {
			add(NegativeStart, act.ID, a.Resource, "busy from %d", a.Start-a.Setup)
		}
		if !p.Resources[a.Resource].Calendar.Within(a.Busy()) {
			add(OutsideCalendar, act.ID, a.Resource, "busy [%d, %d) not inside one working window", a.Start-a.Setup, a.End)
		}
		k := unitKey{a.Resource, a.Unit}
		timelines[k] = append(timelines[k], a)
	}

	for i := range p.Activities {
		after, ok := s.Assignment(ActivityID(i))
		if !ok {
			continue
		}
		for _, pred := range p.Activities[i].Predecessors {
			before, ok := s.Assignment(pred)
			if ok && before.End > after.Start {
				add(BrokenPrecedence, ActivityID(i), after.Resource, "starts at %d before predecessor %d ends at %d",
					after.Start, pred, before.End)
			}
		}
	}

	keys := make([]unitKey, 0, len(timelines))
	for k := range timelines {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b unitKey) int {
		if a.r != b.r {
			return int(a.r - b.r)
		}
		return a.unit - b.unit
	})
	for _, k := range keys {
		line := timelines[k]
		slices.SortFunc(line, func(a, b Assignment) int {
			if a.Busy().Start != b.Busy().Start {
				return cmp.Compare(a.Busy().Start, b.Busy().Start)
			}
			return int(a.Activity - b.Activity)
		})
		clashing := mapset.NewThreadUnsafeSet[ActivityID]()
		for j := 1; j < len(line); j++ {
			for prev := j - 1; prev >= 0; prev-- {
				if line[prev].Busy().Overlaps(line[j].Busy()) && !clashing.Contains(line[j].Activity) {
					clashing.Add(line[j].Activity)
					add(Overlap, line[j].Activity, k.r, "overlaps activity %d on unit %d", line[prev].Activity, k.unit)
				}
			}
		}
	}
	return out
}

// Feasible reports whether Check finds nothing.
func Feasible(p *Problem, s *Schedule) bool {
	return len(Check(p, s)) == 0
}
