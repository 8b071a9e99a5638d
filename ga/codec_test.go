package ga

import (
	"errors"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"shopsched/dispatch"
	"shopsched/jsp"
	"shopsched/kpi"
	"shopsched/model"
	"shopsched/sched"
)

func codec(t *testing.T, p *model.Problem) *Codec {
	t.Helper()
	c, err := NewCodec(p, sched.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func jobShop(t *testing.T, jobs, machines int, seed int64) *model.Problem {
	t.Helper()
	p, err := jsp.Random(jobs, machines, rand.New(rand.NewSource(seed))).Problem()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func flexible(t *testing.T, seed int64) *model.Problem {
	t.Helper()
	return flexibleWith(t, seed, 2)
}

func flexibleWith(t *testing.T, seed int64, capacity int) *model.Problem {
	t.Helper()
	f := jsp.Flexible{Jobs: 6, Machines: 4, MaxModes: 3, Categories: 3, MaxSetup: 20, Capacity: capacity, Due: true}
	p, err := jsp.RandomFlexible(f, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMAVSelectsResource(t *testing.T) {
	p := model.NewProblem()
	r1 := p.AddResource(model.Resource{Name: "R1"})
	r2 := p.AddResource(model.Resource{Name: "R2"})
	a := p.AddActivity(p.AddTask(model.Task{}), model.Activity{Modes: []model.Mode{{Resource: r1, Duration: 10}, {Resource: r2, Duration: 8}}})
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	c := codec(t, p)
	for mav, want := range []model.Mode{{Resource: r1, Duration: 10}, {Resource: r2, Duration: 8}} {
		s, err := c.Decode(Genotype{OSV: []model.ActivityID{a}, MAV: []int{mav}})
		if err != nil {
			t.Fatal(err)
		}
		got, _ := s.Assignment(a)
		if got.Resource != want.Resource || got.End-got.Start != want.Duration {
			t.Errorf("MAV %d placed %v", mav, got)
		}
	}
}

func TestMalformed(t *testing.T) {
	p := model.NewProblem()
	r := p.AddResource(model.Resource{})
	p.Chain(p.AddTask(model.Task{}),
		model.Activity{Modes: []model.Mode{{Resource: r, Duration: 1}}},
		model.Activity{Modes: []model.Mode{{Resource: r, Duration: 1}, {Resource: r, Duration: 2}}},
	)
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	c := codec(t, p)
	tests := map[string]struct {
		g     Genotype
		index int
	}{
		"short OSV":     {Genotype{OSV: []model.ActivityID{0}, MAV: []int{0, 0}}, -1},
		"short MAV":     {Genotype{OSV: []model.ActivityID{0, 1}, MAV: []int{0}}, -1},
		"repeat":        {Genotype{OSV: []model.ActivityID{1, 1}, MAV: []int{0, 0}}, 1},
		"unknown":       {Genotype{OSV: []model.ActivityID{0, 2}, MAV: []int{0, 0}}, 1},
		"mode too high": {Genotype{OSV: []model.ActivityID{0, 1}, MAV: []int{0, 2}}, 1},
		"negative mode": {Genotype{OSV: []model.ActivityID{0, 1}, MAV: []int{-1, 0}}, 0},
	}
	for name, tc := range tests {
		s, err := c.Decode(tc.g)
		var me *sched.MalformedGenotypeError
		if s != nil || !errors.Is(err, sched.ErrMalformedGenotype) || !errors.As(err, &me) {
			t.Errorf("%s: got %v, %v", name, s, err)
			continue
		}
		if me.Index != tc.index {
			t.Errorf("%s: index %d, want %d", name, me.Index, tc.index)
		}
	}
	if err := c.Validate(Genotype{OSV: []model.ActivityID{1, 0}, MAV: []int{0, 1}}); err != nil {
		t.Errorf("valid genotype rejected: %v", err)
	}
}

func TestMAVForActivityWithoutModes(t *testing.T) {
	p := model.NewProblem()
	r := p.AddResource(model.Resource{})
	p.AddActivity(p.AddTask(model.Task{}), model.Activity{Modes: []model.Mode{{Resource: r, Duration: 1}}})
	empty := p.AddActivity(p.AddTask(model.Task{}), model.Activity{})
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	c := codec(t, p)
	osv := []model.ActivityID{0, empty}
	for _, m := range []int{3, -1} {
		var me *sched.MalformedGenotypeError
		if err := c.Validate(Genotype{OSV: osv, MAV: []int{0, m}}); !errors.As(err, &me) || me.Index != 1 {
			t.Errorf("MAV %d: got %v", m, err)
		}
	}
	_, err := c.Decode(Genotype{OSV: osv, MAV: []int{0, 0}})
	var ue *sched.UnschedulableError
	if !errors.As(err, &ue) || ue.Activity != empty {
		t.Fatalf("got %v", err)
	}
}

// permutations calls fn with every ordering of ids; fn must not keep the slice.
func permutations(ids []model.ActivityID, fn func([]model.ActivityID)) {
	var walk func(k int)
	walk = func(k int) {
		if k == len(ids) {
			fn(ids)
			return
		}
		for i := k; i < len(ids); i++ {
			ids[k], ids[i] = ids[i], ids[k]
			walk(k + 1)
			ids[k], ids[i] = ids[i], ids[k]
		}
	}
	walk(0)
}

func TestDecodeReachesDelayedOrder(t *testing.T) {
	p := model.NewProblem()
	r1 := p.AddResource(model.Resource{Name: "R1"})
	r2 := p.AddResource(model.Resource{Name: "R2"})
	r3 := p.AddResource(model.Resource{Name: "R3"})
	chain := p.Chain(p.AddTask(model.Task{}),
		model.Activity{Name: "X", Modes: []model.Mode{{Resource: r2, Duration: 1}}},
		model.Activity{Name: "B", Modes: []model.Mode{{Resource: r1, Duration: 1}}},
		model.Activity{Name: "C", Modes: []model.Mode{{Resource: r3, Duration: 50}}},
	)
	x, b, cc := chain[0], chain[1], chain[2]
	a := p.AddActivity(p.AddTask(model.Task{}), model.Activity{Name: "A", Modes: []model.Mode{{Resource: r1, Duration: 100}}})
	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	c := codec(t, p)
	mav := make([]int, len(p.Activities))

	s, err := c.Decode(Genotype{OSV: []model.ActivityID{b, x, a, cc}, MAV: mav})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.Assignment(b)
	late, _ := s.Assignment(a)
	if got.Start != 1 || late.Start != 2 || s.Makespan() != 102 {
		t.Errorf("B starts %d, A starts %d, makespan %d", got.Start, late.Start, s.Makespan())
	}

	best := model.Unbounded
	permutations([]model.ActivityID{x, b, cc, a}, func(osv []model.ActivityID) {
		s, err := c.Decode(Genotype{OSV: slices.Clone(osv), MAV: mav})
		if err != nil {
			t.Fatal(err)
		}
		best = min(best, s.Makespan())
	})
	if best != 102 {
		t.Errorf("best makespan over all orders %d, want 102", best)
	}
}

func TestRoundTripJobShop(t *testing.T) {
	for seed := int64(1); seed <= 4; seed++ {
		p := jobShop(t, 8, 5, seed)
		c := codec(t, p)
		for _, rule := range []dispatch.Rule{dispatch.SPT, dispatch.LPT, dispatch.MWKR, dispatch.FIFO} {
			e, err := dispatch.New(rule)
			if err != nil {
				t.Fatal(err)
			}
			original, err := sched.Greedy(p, e, sched.Options{})
			if err != nil {
				t.Fatal(err)
			}
			g, err := c.Encode(original)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := c.Decode(g)
			if err != nil {
				t.Fatal(err)
			}
			if !decoded.Equal(original) {
				t.Errorf("seed %d %v: decode(encode(s)) differs from s", seed, rule)
			}
		}
	}
}

func TestRoundTripFlexible(t *testing.T) {
	rules := []dispatch.Rule{dispatch.SPT, dispatch.EDD, dispatch.ATC, dispatch.WSPT, dispatch.MWKR, dispatch.SRO}
	for seed := int64(1); seed <= 8; seed++ {
		p := flexibleWith(t, seed, 1)
		c := codec(t, p)
		for _, rule := range rules {
			e, err := dispatch.New(rule)
			if err != nil {
				t.Fatal(err)
			}
			original, err := sched.Greedy(p, e, sched.Options{})
			if err != nil {
				t.Fatal(err)
			}
			g, err := c.Encode(original)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := c.Decode(g)
			if err != nil {
				t.Fatal(err)
			}
			before, after := kpi.Evaluate(p, original), kpi.Evaluate(p, decoded)
			if after.Makespan > before.Makespan || after.WeightedTardiness > before.WeightedTardiness {
				t.Errorf("seed %d %v: decode(encode(s)) worsened makespan %d -> %d, weighted tardiness %g -> %g",
					seed, rule, before.Makespan, after.Makespan, before.WeightedTardiness, after.WeightedTardiness)
			}
			if !decoded.Equal(original) {
				t.Errorf("seed %d %v: decode(encode(s)) differs from s", seed, rule)
			}
		}
	}
}

func TestRoundTripPooledIsFeasible(t *testing.T) {
	p := flexible(t, 3)
	c := codec(t, p)
	e, err := dispatch.New(dispatch.EDD)
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.Seed(e)
	if err != nil {
		t.Fatal(err)
	}
	s, err := c.Decode(g)
	if err != nil {
		t.Fatal(err)
	}
	if v := model.Check(p, s); v != nil {
		t.Fatalf("infeasible: %v", v)
	}
	again, err := c.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(again); err != nil {
		t.Fatal(err)
	}
}

func TestRandomGenotypesDecodeFeasibly(t *testing.T) {
	for seed := int64(1); seed <= 3; seed++ {
		p := flexible(t, seed)
		c := codec(t, p)
		rng := rand.New(rand.NewSource(seed))
		for _, g := range c.Population(12, rng) {
			first, err := c.Decode(g)
			if err != nil {
				t.Fatal(err)
			}
			second, err := c.Decode(g.Clone())
			if err != nil {
				t.Fatal(err)
			}
			if !first.Complete() || !first.Equal(second) {
				t.Fatal("decode is not deterministic")
			}
			if v := model.Check(p, first); v != nil {
				t.Fatalf("infeasible: %v", v)
			}
		}
	}
}

func TestSeedingStrategies(t *testing.T) {
	p := flexible(t, 9)
	c := codec(t, p)
	rng := rand.New(rand.NewSource(1))

	short := c.ShortestMode(rng)
	for a, m := range short.MAV {
		modes := p.Activities[a].Modes
		if modes[m].Duration != p.Activities[a].MinDuration() {
			t.Errorf("activity %d: mode %d is not the shortest", a, m)
		}
	}
	for _, g := range []Genotype{short, c.Random(rng), c.LoadBalanced(rng)} {
		if err := c.Validate(g); err != nil {
			t.Errorf("seeded genotype invalid: %v", err)
		}
	}

	a := c.Random(rand.New(rand.NewSource(5)))
	b := c.Random(rand.New(rand.NewSource(5)))
	if err := c.Validate(a); err != nil {
		t.Fatal(err)
	}
	for i := range a.OSV {
		if a.OSV[i] != b.OSV[i] || a.MAV[i] != b.MAV[i] {
			t.Fatal("same seed produced different genotypes")
		}
	}
}

func TestSeedMatchesGreedy(t *testing.T) {
	p := jobShop(t, 6, 4, 21)
	c := codec(t, p)
	e, err := dispatch.New(dispatch.SPT)
	if err != nil {
		t.Fatal(err)
	}
	greedy, err := sched.Greedy(p, e, sched.Options{})
	if err != nil {
		t.Fatal(err)
	}
	g, err := c.Seed(e)
	if err != nil {
		t.Fatal(err)
	}
	report, s, err := c.Evaluate(g)
	if err != nil {
		t.Fatal(err)
	}
	if report.Makespan != greedy.Makespan() || !s.Equal(greedy) {
		t.Errorf("seeded makespan %d, greedy %d", report.Makespan, greedy.Makespan())
	}
	if report.MeanFlowTime != c.Fitness(greedy).MeanFlowTime {
		t.Error("fitness differs between equal schedules")
	}
}

func TestConcurrentDecode(t *testing.T) {
	p := flexible(t, 4)
	c := codec(t, p)
	pop := c.Population(16, rand.New(rand.NewSource(2)))
	want := make([]*model.Schedule, len(pop))
	for i, g := range pop {
		s, err := c.Decode(g)
		if err != nil {
			t.Fatal(err)
		}
		want[i] = s
	}
	var wg sync.WaitGroup
	errs := make(chan int, len(pop))
	for i, g := range pop {
		wg.Add(1)
		go func(i int, g Genotype) {
			defer wg.Done()
			s, err := c.Decode(g)
			if err != nil || !s.Equal(want[i]) {
				errs <- i
			}
		}(i, g)
	}
	wg.Wait()
	close(errs)
	for i := range errs {
		t.Errorf("genotype %d decoded differently in parallel", i)
	}
}

func TestNewCodecNeedsFinalizedProblem(t *testing.T) {
	if _, err := NewCodec(model.NewProblem(), sched.Options{}); !errors.Is(err, sched.ErrNotFinalized) {
		t.Fatalf("got %v", err)
	}
}
