package dispatch

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"shopsched/model"
)

// DefaultLookahead is the ATC scaling constant K.
const DefaultLookahead = 2.0

var ErrNoRand = errors.New("RANDOM rule needs a random source")

// Engine evaluates one Rule. An Engine holding a random source is not safe for concurrent
// use; give each goroutine its own.
type Engine struct {
	rule      Rule
	lookahead float64
	rng       *rand.Rand
}

type Option func(*Engine)

// WithLookahead sets the ATC constant K.
func WithLookahead(k float64) Option {
	return func(e *Engine) { e.lookahead = k }
}

// WithRand injects the source used by RANDOM.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func New(rule Rule, opts ...Option) (*Engine, error) {
	e := &Engine{rule: rule, lookahead: DefaultLookahead}
	for _, opt := range opts {
		opt(e)
	}
	if rule < 0 || int(rule) >= len(ruleNames) {
		return nil, fmt.Errorf("unknown dispatching rule %d", int(rule))
	}
	if rule == RANDOM && e.rng == nil {
		return nil, ErrNoRand
	}
	if e.lookahead <= 0 || math.IsNaN(e.lookahead) {
		return nil, fmt.Errorf("ATC lookahead must be > 0 (got %v)", e.lookahead)
	}
	return e, nil
}

func (e *Engine) Rule() Rule {
	return e.rule
}

// Key scores activity a under the engine's rule; lower keys run first. For RANDOM every
// call consumes one draw.
func (e *Engine) Key(ctx *Context, a model.ActivityID) float64 {
	act := ctx.Problem.Activity(a)
	task := ctx.Problem.Task(act.Task)
	p := float64(act.MinDuration())
	rem := float64(ctx.RemainingWork[act.Task])
	now := float64(ctx.Now)
	due := math.Inf(1)
	if task.HasDue {
		due = float64(task.Due)
	}

	switch e.rule {
	case SPT:
		return p
	case LPT:
		return -p
	case EDD:
		return due
	case FIFO:
		return float64(ctx.ReadyAt[a])
	case SLACK:
		return due - now - rem
	case CR:
		if rem <= 0 {
			return math.Inf(1)
		}
		return (due - now) / rem
	case ATC:
		return -e.atc(ctx, task, p, rem)
	case WSPT:
		return p / task.Weight
	case MWKR:
		return -rem
	case LWKR:
		return rem
	case MOPNR:
		return -float64(ctx.RemainingOps[act.Task])
	case PRIORITY:
		return -task.Weight
	case RANDOM:
		return e.rng.Float64()
	case SRO:
		n := ctx.RemainingOps[act.Task]
		if n <= 0 {
			return math.Inf(1)
		}
		return (due - now - rem) / float64(n)
	}
	panic(fmt.Sprintf("unhandled rule %v", e.rule))
}

// atc is the apparent tardiness cost (w/p) * exp(-max(0, slack) / (K * mean duration)).
// A task without a due date has infinite slack and scores 0.
func (e *Engine) atc(ctx *Context, task *model.Task, p, rem float64) float64 {
	if !task.HasDue {
		return 0
	}
	if p <= 0 {
		return math.Inf(1)
	}
	score := task.Weight / p
	mean := ctx.Problem.MeanDuration()
	if mean <= 0 {
		mean = 1
	}
	slack := max(0, float64(task.Due)-float64(ctx.Now)-rem)
	return score * math.Exp(-slack/(e.lookahead*mean))
}

// Order returns the ids sorted by key, ties by ascending id. The input is not modified
// and its order has no influence on the result.
func (e *Engine) Order(ctx *Context, ids []model.ActivityID) []model.ActivityID {
	out := slices.Clone(ids)
	slices.Sort(out)
	keys := make(map[model.ActivityID]float64, len(out))
	for _, a := range out {
		keys[a] = e.Key(ctx, a)
	}
	slices.SortStableFunc(out, func(a, b model.ActivityID) int {
		ka, kb := keys[a], keys[b]
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})
	return out
}

// Best returns the first activity of Order, or model.NoActivity for an empty set.
func (e *Engine) Best(ctx *Context, ids []model.ActivityID) model.ActivityID {
	if len(ids) == 0 {
		return model.NoActivity
	}
	return e.Order(ctx, ids)[0]
}
