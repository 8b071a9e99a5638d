// Package kpi scores completed schedules. All functions are pure.
package kpi

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"shopsched/model"
)

type Report struct {
	Makespan          model.Time
	TotalTardiness    model.Time
	WeightedTardiness float64
	MaxTardiness      model.Time
	// OnTimeRate is the share of tasks with a due date that finish by it; 1 when no task
	// has one.
	OnTimeRate   float64
	MeanFlowTime float64
	// Utilization is indexed by ResourceID.
	Utilization     []float64
	MeanUtilization float64
}

func Evaluate(p *model.Problem, s *model.Schedule) Report {
	r := Report{
		Makespan:          Makespan(s),
		TotalTardiness:    TotalTardiness(p, s),
		WeightedTardiness: WeightedTardiness(p, s),
		MaxTardiness:      MaxTardiness(p, s),
		OnTimeRate:        OnTimeRate(p, s),
		MeanFlowTime:      MeanFlowTime(p, s),
		Utilization:       make([]float64, len(p.Resources)),
	}
	for i := range p.Resources {
		r.Utilization[i] = Utilization(p, s, model.ResourceID(i))
	}
	r.MeanUtilization = mean(r.Utilization)
	return r
}

func Makespan(s *model.Schedule) model.Time {
	return s.Makespan()
}

// Tardiness is how late task t finishes; 0 without a due date.
func Tardiness(p *model.Problem, s *model.Schedule, t model.TaskID) model.Time {
	task := p.Task(t)
	if !task.HasDue {
		return 0
	}
	return max(0, s.TaskCompletion(p, t)-task.Due)
}

func tardiness(p *model.Problem, s *model.Schedule) []model.Time {
	out := make([]model.Time, len(p.Tasks))
	for i := range p.Tasks {
		out[i] = Tardiness(p, s, model.TaskID(i))
	}
	return out
}

func TotalTardiness(p *model.Problem, s *model.Schedule) model.Time {
	return sum(tardiness(p, s))
}

func WeightedTardiness(p *model.Problem, s *model.Schedule) float64 {
	var total float64
	for i, late := range tardiness(p, s) {
		total += float64(late) * p.Tasks[i].Weight
	}
	return total
}

func MaxTardiness(p *model.Problem, s *model.Schedule) model.Time {
	return maximum(tardiness(p, s))
}

func OnTimeRate(p *model.Problem, s *model.Schedule) float64 {
	due, onTime := 0, 0
	for i := range p.Tasks {
		if !p.Tasks[i].HasDue {
			continue
		}
		due++
		if Tardiness(p, s, model.TaskID(i)) == 0 {
			onTime++
		}
	}
	if due == 0 {
		return 1
	}
	return float64(onTime) / float64(due)
}

// MeanFlowTime averages completion minus release over tasks that have activities.
func MeanFlowTime(p *model.Problem, s *model.Schedule) float64 {
	var flows []model.Time
	for i := range p.Tasks {
		task := &p.Tasks[i]
		if len(task.Activities) == 0 {
			continue
		}
		flows = append(flows, s.TaskCompletion(p, task.ID)-max(task.Release, 0))
	}
	return mean(flows)
}

// Utilization is busy time on r, setups included, over the working time r offers between
// 0 and the makespan across all its units.
func Utilization(p *model.Problem, s *model.Schedule, r model.ResourceID) float64 {
	res := p.Resource(r)
	available := res.Calendar.Available(0, s.Makespan()) * model.Time(res.Capacity)
	if available <= 0 {
		return 0
	}
	var busy model.Time
	for _, a := range s.Assignments() {
		if a.Resource == r {
			busy += a.Busy().Len()
		}
	}
	return float64(busy) / float64(available)
}

// Objective picks one scalar of a Report for a search loop to minimise.
type Objective int

const (
	MinMakespan Objective = iota
	MinTotalTardiness
	MinWeightedTardiness
	MinMaxTardiness
	MinMeanFlowTime
)

var objectiveNames = [...]string{"makespan", "total_tardiness", "weighted_tardiness", "max_tardiness", "mean_flow_time"}

func (o Objective) String() string {
	if o < 0 || int(o) >= len(objectiveNames) {
		return fmt.Sprintf("Objective(%d)", int(o))
	}
	return objectiveNames[o]
}

func ParseObjective(s string) (Objective, error) {
	for i, name := range objectiveNames {
		if s == name {
			return Objective(i), nil
		}
	}
	return 0, fmt.Errorf("unknown objective %q", s)
}

func (r Report) Objective(o Objective) float64 {
	switch o {
	case MinMakespan:
		return float64(r.Makespan)
	case MinTotalTardiness:
		return float64(r.TotalTardiness)
	case MinWeightedTardiness:
		return r.WeightedTardiness
	case MinMaxTardiness:
		return float64(r.MaxTardiness)
	case MinMeanFlowTime:
		return r.MeanFlowTime
	}
	panic(fmt.Sprintf("unknown objective %d", int(o)))
}

func sum[T constraints.Integer | constraints.Float](xs []T) T {
	var total T
	for _, x := range xs {
		total += x
	}
	return total
}

func mean[T constraints.Integer | constraints.Float](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	return float64(sum(xs)) / float64(len(xs))
}

func maximum[T constraints.Ordered](xs []T) T {
	var m T
	for i, x := range xs {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}
