package sched_go

import "sync"

// UnitState represents where a unit is in its registration lifecycle.
type UnitState int

// UnitStateUnregistered through UnitStateScheduled are the lifecycle states of
// a unit inside a Scheduler.
const (
	UnitStateUnregistered UnitState = iota
	UnitStateRegistered             // accepted, waiting for the rebuild to commit
	UnitStateScheduled              // part of the last built plan
)

func (s UnitState) String() string {
	switch s {
	case UnitStateUnregistered:
		return "Unregistered"
	case UnitStateRegistered:
		return "Registered"
	case UnitStateScheduled:
		return "Scheduled"
	default:
		return "Unknown"
	}
}

// isValidTransition reports whether the from→to edge exists in the unit
// state machine.
//
// Valid transitions:
//
//	Unregistered → Registered
//	Registered   → Scheduled | Unregistered (rebuild rejected the unit)
//	Scheduled    → Unregistered
func isValidTransition(from, to UnitState) bool {
	switch from {
	case UnitStateUnregistered:
		return to == UnitStateRegistered
	case UnitStateRegistered:
		return to == UnitStateScheduled || to == UnitStateUnregistered
	case UnitStateScheduled:
		return to == UnitStateUnregistered
	default:
		return false
	}
}

// entry tracks one registered unit and its lifecycle state.
type entry struct {
	unit  Unit
	kind  Kind
	state UnitState
	mu    sync.RWMutex // guards state
}

func newEntry(u Unit) *entry {
	return &entry{unit: u, kind: u.Kind(), state: UnitStateUnregistered}
}

// State returns the entry's current state under the read lock.
func (e *entry) State() UnitState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// TransitionState atomically advances the entry from `from` to `to`. It
// returns false when the current state is not `from` or the move is not
// permitted, so a Scheduled unit can never be pushed back to Registered.
func (e *entry) TransitionState(from, to UnitState) bool {
	if !isValidTransition(from, to) {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		return false
	}
	e.state = to
	return true
}
