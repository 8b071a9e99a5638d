package model

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Time is a point or duration on the scheduling axis, in abstract units from epoch t=0.
type Time int64

// Unbounded is the open end of the time axis.
const Unbounded Time = math.MaxInt64

// Window is the half-open interval [Start, End).
type Window struct {
	Start Time
	End   Time
}

func (w Window) Len() Time {
	return w.End - w.Start
}

func (w Window) Contains(t Time) bool {
	return t >= w.Start && t < w.End
}

// Covers reports whether o lies entirely inside w.
func (w Window) Covers(o Window) bool {
	return o.Start >= w.Start && o.End <= w.End
}

func (w Window) Overlaps(o Window) bool {
	return overlap(w.Start, w.End, o.Start, o.End) > 0
}

// overlap returns the length shared by [aStart, aEnd) and [bStart, bEnd).
func overlap[T constraints.Integer](aStart, aEnd, bStart, bEnd T) T {
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
