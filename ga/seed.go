package ga

import (
	"fmt"
	"math/rand"

	"shopsched/dispatch"
	"shopsched/model"
	"shopsched/sched"
)

func (c *Codec) permutation(rng *rand.Rand) []model.ActivityID {
	osv := make([]model.ActivityID, len(c.problem.Activities))
	for i, v := range rng.Perm(len(osv)) {
		osv[i] = model.ActivityID(v)
	}
	return osv
}

// Random draws a uniform OSV and a uniform mode per activity.
func (c *Codec) Random(rng *rand.Rand) Genotype {
	g := Genotype{OSV: c.permutation(rng), MAV: make([]int, len(c.problem.Activities))}
	for i := range g.MAV {
		if n := len(c.problem.Activities[i].Modes); n > 1 {
			g.MAV[i] = rng.Intn(n)
		}
	}
	return g
}

// ShortestMode draws a uniform OSV and runs every activity in its fastest mode.
func (c *Codec) ShortestMode(rng *rand.Rand) Genotype {
	g := Genotype{OSV: c.permutation(rng), MAV: make([]int, len(c.problem.Activities))}
	for i := range g.MAV {
		for m, mode := range c.problem.Activities[i].Modes {
			if mode.Duration < c.problem.Activities[i].Modes[g.MAV[i]].Duration {
				g.MAV[i] = m
			}
		}
	}
	return g
}

// LoadBalanced draws a uniform OSV, then walks it and sends each activity to the eligible
// resource with the least work per unit so far.
func (c *Codec) LoadBalanced(rng *rand.Rand) Genotype {
	g := Genotype{OSV: c.permutation(rng), MAV: make([]int, len(c.problem.Activities))}
	load := make([]float64, len(c.problem.Resources))
	for _, a := range g.OSV {
		modes := c.problem.Activities[a].Modes
		if len(modes) == 0 {
			continue
		}
		best, bestLoad := 0, 0.0
		for m, mode := range modes {
			units := float64(c.problem.Resources[mode.Resource].Capacity)
			after := load[mode.Resource] + float64(mode.Duration)/units
			if m == 0 || after < bestLoad {
				best, bestLoad = m, after
			}
		}
		g.MAV[a] = best
		load[modes[best].Resource] = bestLoad
	}
	return g
}

// Seed encodes the greedy schedule e builds, giving the search a known-good individual.
func (c *Codec) Seed(e *dispatch.Engine) (Genotype, error) {
	s, err := sched.Greedy(c.problem, e, c.opts)
	if err != nil {
		return Genotype{}, fmt.Errorf("seed with %v: %w", e.Rule(), err)
	}
	return c.Encode(s)
}

// Population builds size genotypes, cycling through the random seeding strategies.
func (c *Codec) Population(size int, rng *rand.Rand) []Genotype {
	strategies := []func(*rand.Rand) Genotype{c.Random, c.LoadBalanced, c.ShortestMode}
	pop := make([]Genotype, size)
	for i := range pop {
		pop[i] = strategies[i%len(strategies)](rng)
	}
	return pop
}
