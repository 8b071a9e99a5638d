package jsp

import (
	"fmt"
	"math/rand"
	"strconv"

	"shopsched/model"
)

// Flexible shapes a random flexible job shop.
type Flexible struct {
	Jobs     int
	Machines int
	// MaxModes caps the eligible machines per operation (at least 1).
	MaxModes int
	// Categories > 0 assigns each job one of that many setup classes and fills a random
	// transition matrix with setups below MaxSetup.
	Categories int
	MaxSetup   int
	// Capacity is the unit count of every machine; 0 means 1.
	Capacity int
	// Due gives every job a due date and a weight in [1, 3].
	Due bool
}

// RandomFlexible builds a finalized problem where each job has Machines operations, each
// eligible on a random subset of machines with its own delay in [20, 220).
func RandomFlexible(f Flexible, rng *rand.Rand) (*model.Problem, error) {
	if f.Jobs <= 0 || f.Machines <= 0 {
		return nil, fmt.Errorf("need jobs and machines, got %d x %d", f.Jobs, f.Machines)
	}
	maxModes := min(max(f.MaxModes, 1), f.Machines)
	p := model.NewProblem()
	for m := 0; m < f.Machines; m++ {
		p.AddResource(model.Resource{Name: "M" + strconv.Itoa(m), Capacity: max(f.Capacity, 1)})
	}
	category := func(c int) string { return "C" + strconv.Itoa(c) }
	for j := 0; j < f.Jobs; j++ {
		task := model.Task{Name: "J" + strconv.Itoa(j)}
		if f.Categories > 0 {
			task.Category = category(rng.Intn(f.Categories))
		}
		id := p.AddTask(task)
		acts := make([]model.Activity, f.Machines)
		var work model.Time
		for o := range acts {
			eligible := rng.Perm(f.Machines)[:1+rng.Intn(maxModes)]
			modes := make([]model.Mode, len(eligible))
			shortest := model.Unbounded
			for i, m := range eligible {
				modes[i] = model.Mode{Resource: model.ResourceID(m), Duration: model.Time(rng.Intn(200) + 20)}
				shortest = min(shortest, modes[i].Duration)
			}
			work += shortest
			acts[o] = model.Activity{Name: fmt.Sprintf("J%d.%d", j, o), Modes: modes}
		}
		p.Chain(id, acts...)
		if f.Due {
			t := p.Task(id)
			t.Weight = float64(1 + rng.Intn(3))
			t.Due = work + model.Time(rng.Int63n(int64(work)+1))
			t.HasDue = true
		}
	}
	if f.Categories > 0 && f.MaxSetup > 0 {
		for m := 0; m < f.Machines; m++ {
			for from := 0; from < f.Categories; from++ {
				for to := 0; to < f.Categories; to++ {
					if from != to {
						p.SetTransition(model.ResourceID(m), category(from), category(to), model.Time(rng.Intn(f.MaxSetup)))
					}
				}
			}
		}
	}
	if err := p.Finalize(); err != nil {
		return nil, err
	}
	return p, nil
}
