// Package sched builds schedules with a discrete-event constructive simulation.
//
// Build is shared by the greedy scheduler and the genotype decoder: a Sequencer decides
// which competing activity goes next and a Router restricts the resources it may use, so
// both search strategies obey the same feasibility rules.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/oleiade/lane/v2"

	"shopsched/dispatch"
	"shopsched/logging"
	"shopsched/model"
)

// Sequencer picks the next activity among candidates.
// Candidates arrive sorted by id and the result must be one of them.
type Sequencer interface {
	Select(ctx *dispatch.Context, candidates []model.ActivityID) model.ActivityID
}

// Router returns the indices into an activity's Modes the construction may choose from.
type Router interface {
	Modes(a model.ActivityID) []int
}

// Scope decides which ready activities compete at each step.
type Scope int

const (
	// Contended finds the ready activity that can finish earliest, c*, on resource r*,
	// and offers every ready activity able to start on r* before c* (Giffler-Thompson).
	Contended Scope = iota
	// Ready offers every activity whose predecessors are placed. Picking in a fixed
	// priority order then yields the semi-active schedule of that order.
	Ready
)

var scopeNames = [...]string{Contended: "contended", Ready: "ready"}

func (s Scope) String() string {
	if s < 0 || int(s) >= len(scopeNames) {
		return fmt.Sprintf("Scope(%d)", int(s))
	}
	return scopeNames[s]
}

func ParseScope(s string) (Scope, error) {
	for i, name := range scopeNames {
		if strings.EqualFold(s, name) {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

type Options struct {
	// Horizon bounds every committed interval; 0 means unbounded.
	Horizon model.Time
	Scope   Scope
	// Logger receives per-placement debug records; nil discards them.
	Logger *slog.Logger
}

func (o Options) horizon() model.Time {
	if o.Horizon <= 0 {
		return model.Unbounded
	}
	return o.Horizon
}

type unit struct {
	free model.Time
	last model.ActivityID
}

// placement is a candidate slot for one activity.
type placement struct {
	mode  int
	unit  int
	busy  model.Time
	setup model.Time
	start model.Time
	end   model.Time
}

// stamp is a queue entry; it is stale once version moves on.
type stamp struct {
	activity model.ActivityID
	version  int
}

type builder struct {
	problem  *model.Problem
	route    Router
	scope    Scope
	horizon  model.Time
	units    [][]unit
	waiting  []int
	ctx      *dispatch.Context
	ready    mapset.Set[model.ActivityID]
	done     mapset.Set[model.ActivityID]
	schedule *model.Schedule
	logger   *slog.Logger
	debug    bool

	// Contended scope only: routed activities per resource in id order, and the cached
	// earliest slot of every ready activity queued by its end.
	users   [][]model.ActivityID
	slots   []placement
	version []int
	queue   *lane.PriorityQueue[stamp, model.Time]
}

func newBuilder(p *model.Problem, route Router, opts Options) *builder {
	n := len(p.Activities)
	b := &builder{
		problem:  p,
		route:    route,
		scope:    opts.Scope,
		horizon:  opts.horizon(),
		units:    make([][]unit, len(p.Resources)),
		waiting:  make([]int, n),
		ctx:      dispatch.NewContext(p),
		ready:    mapset.NewThreadUnsafeSet[model.ActivityID](),
		done:     mapset.NewThreadUnsafeSet[model.ActivityID](),
		schedule: model.NewSchedule(n),
		logger:   logging.Discard(),
	}
	if opts.Logger != nil {
		b.logger = opts.Logger.With("component", "sched", "run", uuid.NewString())
		b.debug = b.logger.Enabled(context.Background(), slog.LevelDebug)
	}
	for r := range p.Resources {
		b.units[r] = make([]unit, p.Resources[r].Capacity)
		for u := range b.units[r] {
			b.units[r][u].last = model.NoActivity
		}
	}
	for i := range p.Activities {
		b.waiting[i] = len(p.Activities[i].Predecessors)
		if b.waiting[i] == 0 {
			b.ready.Add(model.ActivityID(i))
		}
	}
	if b.scope == Contended {
		b.users = make([][]model.ActivityID, len(p.Resources))
		for i := range p.Activities {
			a := model.ActivityID(i)
			for _, m := range route.Modes(a) {
				r := p.Activities[i].Modes[m].Resource
				if k := len(b.users[r]); k == 0 || b.users[r][k-1] != a {
					b.users[r] = append(b.users[r], a)
				}
			}
		}
		b.slots = make([]placement, n)
		b.version = make([]int, n)
		b.queue = lane.NewMinPriorityQueue[stamp, model.Time]()
	}
	return b
}

// Build runs the simulation until every activity is placed. Each step offers seq the
// activities the scope lets compete, then commits the chosen one on the allowed mode and
// unit with the earliest end. The returned schedule is complete; on error none is returned.
func Build(p *model.Problem, seq Sequencer, route Router, opts Options) (*model.Schedule, error) {
	if !p.Finalized() {
		return nil, ErrNotFinalized
	}
	b := newBuilder(p, route, opts)
	total := len(p.Activities)
	if err := b.refresh(b.sortedReady()); err != nil {
		return nil, err
	}
	for b.done.Cardinality() < total {
		if b.ready.IsEmpty() {
			err := &DeadlockError{Placed: b.done.Cardinality(), Total: total}
			b.logger.Error("construction stalled", "placed", err.Placed, "total", total)
			return nil, err
		}
		var candidates []model.ActivityID
		if b.scope == Contended {
			b.ctx.Now, candidates = b.contended()
		} else {
			b.ctx.Now, candidates = b.readyNow()
		}
		pick := seq.Select(b.ctx, candidates)
		if _, ok := slices.BinarySearch(candidates, pick); !ok {
			panic(fmt.Sprintf("sequencer picked %d outside candidates %v", pick, candidates))
		}
		pl := b.slot(pick)
		if b.scope == Ready {
			var err error
			if pl, err = b.earliest(pick); err != nil {
				b.logger.Warn("activity unschedulable", "error", err)
				return nil, err
			}
		}
		if err := b.refresh(b.commit(pick, pl)); err != nil {
			return nil, err
		}
	}
	b.logger.Info("schedule built", "activities", total, "scope", b.scope, "makespan", b.schedule.Makespan())
	return b.schedule, nil
}

func (b *builder) sortedReady() []model.ActivityID {
	ids := b.ready.ToSlice()
	slices.Sort(ids)
	return ids
}

func (b *builder) slot(a model.ActivityID) placement {
	if b.scope == Contended {
		return b.slots[a]
	}
	return placement{}
}

// refresh recomputes and requeues the cached slots of ids, in order.
func (b *builder) refresh(ids []model.ActivityID) error {
	if b.scope != Contended {
		return nil
	}
	for _, a := range ids {
		pl, err := b.earliest(a)
		if err != nil {
			b.logger.Warn("activity unschedulable", "error", err)
			return err
		}
		b.slots[a] = pl
		b.version[a]++
		b.queue.Push(stamp{activity: a, version: b.version[a]}, pl.end)
	}
	return nil
}

func (b *builder) live(s stamp) bool {
	return b.ready.Contains(s.activity) && b.version[s.activity] == s.version
}

// contended returns the conflict set on the resource of the earliest finishing ready
// activity (lowest id on ties), and the earliest start among it.
func (b *builder) contended() (model.Time, []model.ActivityID) {
	var tied []stamp
	var finish model.Time
	for {
		s, t, ok := b.queue.Pop()
		if !ok {
			break
		}
		if !b.live(s) {
			continue
		}
		if len(tied) > 0 && t != finish {
			b.queue.Push(s, t)
			break
		}
		tied = append(tied, s)
		finish = t
	}
	lead := tied[0].activity
	for _, s := range tied {
		b.queue.Push(s, finish)
		lead = min(lead, s.activity)
	}
	r := b.problem.Activity(lead).Modes[b.slots[lead].mode].Resource

	now := model.Unbounded
	var candidates []model.ActivityID
	for _, a := range b.users[r] {
		if !b.ready.Contains(a) {
			continue
		}
		if start, ok := b.startOn(a, r); ok && start < finish {
			candidates = append(candidates, a)
			now = min(now, start)
		}
	}
	return now, candidates
}

func (b *builder) readyNow() (model.Time, []model.ActivityID) {
	ids := b.sortedReady()
	now := model.Unbounded
	for _, a := range ids {
		now = min(now, b.ctx.ReadyAt[a])
	}
	return now, ids
}

// fit places a on unit u of mode m after the unit frees up and a is released.
func (b *builder) fit(a model.ActivityID, m, u int) (placement, bool) {
	mode := b.problem.Activity(a).Modes[m]
	un := b.units[mode.Resource][u]
	setup := b.problem.Setup(mode.Resource, un.last, a)
	from := max(un.free, b.ctx.ReadyAt[a])
	busy, ok := b.problem.Resource(mode.Resource).Calendar.Fit(from, setup+mode.Duration, b.horizon)
	if !ok {
		return placement{}, false
	}
	return placement{mode: m, unit: u, busy: busy, setup: setup,
		start: busy + setup, end: busy + setup + mode.Duration}, true
}

// startOn is the earliest busy start of a on any allowed unit of r.
func (b *builder) startOn(a model.ActivityID, r model.ResourceID) (model.Time, bool) {
	act := b.problem.Activity(a)
	start, found := model.Unbounded, false
	for _, m := range b.route.Modes(a) {
		if act.Modes[m].Resource != r {
			continue
		}
		for u := range b.units[r] {
			if pl, ok := b.fit(a, m, u); ok {
				start, found = min(start, pl.busy), true
			}
		}
	}
	return start, found
}

// earliest finds the allowed slot for a with the smallest end, then the smallest busy
// start; remaining ties go to the lower mode index and unit.
func (b *builder) earliest(a model.ActivityID) (placement, error) {
	act := b.problem.Activity(a)
	modes := b.route.Modes(a)
	if len(modes) == 0 {
		return placement{}, &UnschedulableError{Activity: a, Reason: "no eligible resource"}
	}
	var best placement
	found := false
	for _, m := range modes {
		for u := range b.units[act.Modes[m].Resource] {
			pl, ok := b.fit(a, m, u)
			if !ok {
				continue
			}
			if !found || pl.end < best.end || (pl.end == best.end && pl.busy < best.busy) {
				best, found = pl, true
			}
		}
	}
	if !found {
		reason := "no working window can hold it"
		if b.horizon != model.Unbounded {
			reason = fmt.Sprintf("no working window can hold it before horizon %d", b.horizon)
		}
		return placement{}, &UnschedulableError{Activity: a, Reason: reason}
	}
	return best, nil
}

// commit places a and returns, in id order, the ready activities whose cached slot it
// invalidated: those routed to the same resource and those it made ready.
func (b *builder) commit(a model.ActivityID, pl placement) []model.ActivityID {
	act := b.problem.Activity(a)
	r := act.Modes[pl.mode].Resource
	b.schedule.Place(model.Assignment{
		Activity: a,
		Resource: r,
		Mode:     pl.mode,
		Unit:     pl.unit,
		Start:    pl.start,
		End:      pl.end,
		Setup:    pl.setup,
	})
	b.units[r][pl.unit] = unit{free: pl.end, last: a}
	b.ready.Remove(a)
	b.done.Add(a)
	b.ctx.Complete(a)
	if b.debug {
		b.logger.Debug("placed", "activity", a, "resource", r, "unit", pl.unit,
			"start", pl.start, "end", pl.end, "setup", pl.setup)
	}

	var stale mapset.Set[model.ActivityID]
	if b.scope == Contended {
		b.version[a]++
		stale = mapset.NewThreadUnsafeSet[model.ActivityID]()
		for _, other := range b.users[r] {
			if b.ready.Contains(other) {
				stale.Add(other)
			}
		}
	}
	for _, succ := range act.Successors() {
		b.ctx.ReadyAt[succ] = max(b.ctx.ReadyAt[succ], pl.end)
		b.waiting[succ]--
		if b.waiting[succ] == 0 {
			b.ready.Add(succ)
			if stale != nil {
				stale.Add(succ)
			}
		}
	}
	if stale == nil {
		return nil
	}
	ids := stale.ToSlice()
	slices.Sort(ids)
	return ids
}
