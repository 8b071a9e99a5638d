// Package ga maps OSV/MAV genotypes to schedules and back for an external genetic search.
//
// The OSV (operation sequence vector) is a permutation of all activity ids: position is
// priority. The MAV (machine assignment vector) holds, per activity id, an index into that
// activity's eligible modes. Decoding runs the same construction as the greedy scheduler
// over every ready activity, so every well-formed genotype yields a feasible semi-active
// schedule and no repair step exists.
package ga

import (
	"cmp"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"shopsched/dispatch"
	"shopsched/kpi"
	"shopsched/model"
	"shopsched/sched"
)

type Genotype struct {
	OSV []model.ActivityID
	MAV []int
}

func (g Genotype) Clone() Genotype {
	return Genotype{OSV: slices.Clone(g.OSV), MAV: slices.Clone(g.MAV)}
}

// Codec is safe for concurrent use: it only reads the problem.
type Codec struct {
	problem *model.Problem
	opts    sched.Options
}

// NewCodec builds with opts. Decode overrides the scope with sched.Ready; Seed keeps it.
func NewCodec(p *model.Problem, opts sched.Options) (*Codec, error) {
	if !p.Finalized() {
		return nil, sched.ErrNotFinalized
	}
	return &Codec{problem: p, opts: opts}, nil
}

func (c *Codec) Problem() *model.Problem {
	return c.problem
}

// Validate checks that g has the shape Decode needs. Out-of-range values are reported,
// never clamped. An activity without modes only accepts MAV 0 and is left for Decode to
// report as sched.ErrUnschedulable.
func (c *Codec) Validate(g Genotype) error {
	n := len(c.problem.Activities)
	if len(g.OSV) != n {
		return &sched.MalformedGenotypeError{Index: -1, Reason: fmt.Sprintf("OSV has %d entries, want %d", len(g.OSV), n)}
	}
	if len(g.MAV) != n {
		return &sched.MalformedGenotypeError{Index: -1, Reason: fmt.Sprintf("MAV has %d entries, want %d", len(g.MAV), n)}
	}
	seen := mapset.NewThreadUnsafeSetWithSize[model.ActivityID](n)
	for i, a := range g.OSV {
		if a < 0 || int(a) >= n {
			return &sched.MalformedGenotypeError{Index: i, Reason: fmt.Sprintf("OSV names unknown activity %d", a)}
		}
		if !seen.Add(a) {
			return &sched.MalformedGenotypeError{Index: i, Reason: fmt.Sprintf("OSV repeats activity %d", a)}
		}
	}
	for i, m := range g.MAV {
		modes := len(c.problem.Activities[i].Modes)
		if modes == 0 && m != 0 {
			return &sched.MalformedGenotypeError{Index: i, Reason: fmt.Sprintf("MAV index %d for an activity without modes", m)}
		}
		if modes > 0 && (m < 0 || m >= modes) {
			return &sched.MalformedGenotypeError{Index: i, Reason: fmt.Sprintf("MAV index %d outside %d modes", m, modes)}
		}
	}
	return nil
}

// rankSequencer picks the candidate placed earliest in the OSV.
type rankSequencer []int

func (r rankSequencer) Select(_ *dispatch.Context, candidates []model.ActivityID) model.ActivityID {
	best := candidates[0]
	for _, a := range candidates[1:] {
		if r[a] < r[best] {
			best = a
		}
	}
	return best
}

// mavRouter allows exactly the mode the MAV names.
type mavRouter [][]int

func (m mavRouter) Modes(a model.ActivityID) []int {
	return m[a]
}

// Decode builds the schedule g describes: the lowest-ranked ready activity goes next, on
// the mode its MAV entry names. It fails with sched.ErrMalformedGenotype when Validate
// does, and otherwise only with the errors of sched.Build.
func (c *Codec) Decode(g Genotype) (*model.Schedule, error) {
	if err := c.Validate(g); err != nil {
		return nil, err
	}
	rank := make(rankSequencer, len(g.OSV))
	for pos, a := range g.OSV {
		rank[a] = pos
	}
	route := make(mavRouter, len(g.MAV))
	for a, m := range g.MAV {
		if len(c.problem.Activities[a].Modes) > 0 {
			route[a] = []int{m}
		}
	}
	opts := c.opts
	opts.Scope = sched.Ready
	s, err := sched.Build(c.problem, rank, route, opts)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return s, nil
}

// Encode derives a genotype from a complete schedule: the OSV orders activities by the
// start of their committed interval, then by start, then by id; the MAV records the mode
// each activity ran in. The OSV is a precedence order. On unit-capacity resources decoding
// it never starts an activity later than s did, and reproduces any schedule Build returns.
func (c *Codec) Encode(s *model.Schedule) (Genotype, error) {
	n := len(c.problem.Activities)
	if s.Size() != n || !s.Complete() {
		return Genotype{}, fmt.Errorf("encode: schedule holds %d of %d activities", s.Len(), n)
	}
	placed := s.Assignments()
	slices.SortStableFunc(placed, func(a, b model.Assignment) int {
		if d := cmp.Compare(a.Busy().Start, b.Busy().Start); d != 0 {
			return d
		}
		if d := cmp.Compare(a.Start, b.Start); d != 0 {
			return d
		}
		return cmp.Compare(a.Activity, b.Activity)
	})
	g := Genotype{OSV: make([]model.ActivityID, n), MAV: make([]int, n)}
	for i, a := range placed {
		g.OSV[i] = a.Activity
		g.MAV[a.Activity] = a.Mode
	}
	return g, nil
}

// Fitness scores a schedule; the search chooses which field of the report to optimise.
func (c *Codec) Fitness(s *model.Schedule) kpi.Report {
	return kpi.Evaluate(c.problem, s)
}

// Evaluate decodes g and scores the result.
func (c *Codec) Evaluate(g Genotype) (kpi.Report, *model.Schedule, error) {
	s, err := c.Decode(g)
	if err != nil {
		return kpi.Report{}, nil, err
	}
	return c.Fitness(s), s, nil
}
