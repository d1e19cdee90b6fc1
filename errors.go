package sched_go

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType identifies the scheduler operation that produced a systemError.
type (
	ErrorType int

	systemError struct {
		errorType ErrorType
		reason    error
	}
)

// AddUnit, RemoveUnit, Rebuild, CloseScheduler are the ErrorType values that
// identify which scheduler operation recorded an error.
const (
	AddUnit ErrorType = iota
	RemoveUnit
	Rebuild
	CloseScheduler
)

func (t ErrorType) String() string {
	switch t {
	case AddUnit:
		return "add"
	case RemoveUnit:
		return "remove"
	case Rebuild:
		return "rebuild"
	case CloseScheduler:
		return "close"
	default:
		return "unknown"
	}
}

// Sentinel errors. Every error returned by the graph and the scheduler wraps
// one of these, so callers should test with errors.Is.
var (
	ErrDuplicateRegistration = errors.New("unit already registered")
	ErrUnitNotFound          = errors.New("unit not found")
	ErrSelfDependency        = errors.New("unit cannot depend on itself")
	ErrCyclicalDependency    = errors.New("cyclical dependency")
	ErrUnresolvedConflict    = errors.New("unresolved write conflict")

	ErrNodeAlreadyExists = errors.New("node already exists")
	ErrNodeNotFound      = errors.New("node not found")

	ErrInvalidKind       = errors.New("unit has no kind")
	ErrUnitNotComparable = errors.New("unit is not comparable; implement Unit on a pointer receiver")
	ErrSchedulerClosed   = errors.New("scheduler closed")
)

// CycleError is returned when adding an edge would close a cycle. Path starts
// and ends with the node whose dependency was being added.
type CycleError struct {
	Path  []string
	Trace string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCyclicalDependency.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCyclicalDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicalDependency
}

// ConflictError names two units that write the same tags with neither an
// explicit order nor an alongside exemption between them.
type ConflictError struct {
	A, B Kind
	Tags []Tag
}

func (e *ConflictError) Error() string {
	tags := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = string(t)
	}
	return fmt.Sprintf("%s: %s and %s both write {%s}; declare before/after or alongside",
		ErrUnresolvedConflict, e.A, e.B, strings.Join(tags, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrUnresolvedConflict
}

// UnitError carries a failure returned by a unit's Update during a tick.
type UnitError struct {
	Kind  Kind
	Tick  uint64
	Layer int
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s failed in layer %d of tick %d: %v", e.Kind, e.Layer, e.Tick, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
