package sched

import (
	"errors"
	"fmt"

	"shopsched/model"
)

// Sentinel errors.
var (
	ErrUnschedulable     = errors.New("unschedulable activity")
	ErrMalformedGenotype = errors.New("malformed genotype")
	ErrDeadlock          = errors.New("deadlocked precedence")
	ErrNotFinalized      = errors.New("problem is not finalized")
)

// UnschedulableError names the activity no eligible resource can take.
type UnschedulableError struct {
	Activity model.ActivityID
	Reason   string
}

func (e *UnschedulableError) Error() string {
	return fmt.Sprintf("activity %d: %v: %s", e.Activity, ErrUnschedulable, e.Reason)
}

func (e *UnschedulableError) Unwrap() error {
	return ErrUnschedulable
}

// MalformedGenotypeError reports a genotype that is not a permutation plus in-range mode
// indices. Index is the offending vector position, or -1 when the shape is wrong.
type MalformedGenotypeError struct {
	Index  int
	Reason string
}

func (e *MalformedGenotypeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", ErrMalformedGenotype, e.Reason)
	}
	return fmt.Sprintf("%v: position %d: %s", ErrMalformedGenotype, e.Index, e.Reason)
}

func (e *MalformedGenotypeError) Unwrap() error {
	return ErrMalformedGenotype
}

// DeadlockError means activities remain but none can become ready.
type DeadlockError struct {
	Placed int
	Total  int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("%v: %d of %d activities placed, none ready", ErrDeadlock, e.Placed, e.Total)
}

func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}
