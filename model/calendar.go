package model

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
)

// Calendar is an ordered set of disjoint working windows. A nil *Calendar is always open.
//
// Activities are not interruptible: a committed interval must lie inside a single window.
type Calendar struct {
	windows []Window
}

// NewCalendar sorts the windows and merges the ones that touch. Empty or overlapping
// windows are rejected.
func NewCalendar(windows ...Window) (*Calendar, error) {
	ws := slices.Clone(windows)
	slices.SortFunc(ws, func(a, b Window) int { return cmp.Compare(a.Start, b.Start) })
	merged := make([]Window, 0, len(ws))
	for _, w := range ws {
		if w.End <= w.Start {
			return nil, fmt.Errorf("calendar window [%d, %d) is empty", w.Start, w.End)
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if w.Start < last.End {
				return nil, fmt.Errorf("calendar windows [%d, %d) and [%d, %d) overlap",
					last.Start, last.End, w.Start, w.End)
			}
			if w.Start == last.End {
				last.End = w.End
				continue
			}
		}
		merged = append(merged, w)
	}
	return &Calendar{windows: merged}, nil
}

// MustCalendar is NewCalendar for literal calendars; it panics on invalid windows.
func MustCalendar(windows ...Window) *Calendar {
	c, err := NewCalendar(windows...)
	if err != nil {
		panic(err)
	}
	return c
}

// Windows returns a copy of the working windows, or nil for an always-open calendar.
func (c *Calendar) Windows() []Window {
	if c == nil {
		return nil
	}
	return slices.Clone(c.windows)
}

// Working reports whether t is inside a working window.
func (c *Calendar) Working(t Time) bool {
	if c == nil {
		return true
	}
	i := c.search(t)
	return i < len(c.windows) && c.windows[i].Contains(t)
}

// Fit returns the earliest start >= from such that [start, start+length) lies inside one
// working window and ends no later than horizon.
func (c *Calendar) Fit(from, length, horizon Time) (Time, bool) {
	if c == nil {
		if from > horizon-length {
			return 0, false
		}
		return from, true
	}
	for i := c.search(from); i < len(c.windows); i++ {
		w := c.windows[i]
		start := max(from, w.Start)
		if start > horizon-length {
			return 0, false
		}
		if start+length <= w.End {
			return start, true
		}
	}
	return 0, false
}

// Within reports whether the interval lies inside a single working window.
func (c *Calendar) Within(iv Window) bool {
	if c == nil {
		return true
	}
	i := c.search(iv.Start)
	return i < len(c.windows) && c.windows[i].Covers(iv)
}

// Available returns the working time inside [from, to).
func (c *Calendar) Available(from, to Time) Time {
	if to <= from {
		return 0
	}
	if c == nil {
		return to - from
	}
	var total Time
	for i := c.search(from); i < len(c.windows) && c.windows[i].Start < to; i++ {
		total += overlap(c.windows[i].Start, c.windows[i].End, from, to)
	}
	return total
}

// search returns the index of the first window ending after t.
func (c *Calendar) search(t Time) int {
	return sort.Search(len(c.windows), func(i int) bool { return c.windows[i].End > t })
}
