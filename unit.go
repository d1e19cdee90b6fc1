package sched_go

import (
	"context"
	"sort"
	"time"

	"github.com/seoyhaein/utils"
)

// Kind is the stable identifier of a unit kind. Explicit ordering overrides
// (Before, After, Alongside) refer to other units by Kind, and a scheduler
// holds at most one unit of each Kind.
type Kind string

// Tag names a resource a unit reads or writes. Tags are opaque to the
// scheduler; they usually correspond to component types in the entity store.
type Tag string

// Tick is the value supplied by the tick source for one ProcessTick call.
type Tick struct {
	Seq   uint64
	Delta time.Duration
	Time  time.Time
}

// Access is the declarative half of the unit contract.
//
// Reads and Writes drive inferred ordering. Before and After force an order
// against the named kinds regardless of access. Alongside waives the
// write/write conflict with the named kinds: both units may land in the same
// layer and run concurrently, and they are responsible for not racing.
type Access struct {
	Reads     []Tag
	Writes    []Tag
	Before    []Kind
	After     []Kind
	Alongside []Kind
}

// Unit is one schedulable piece of per-tick logic.
//
// The scheduler trusts Access: two units placed in the same layer are only
// safe because their declared writes do not overlap anything the other
// touches. A unit that mutates state outside its Writes silently breaks that
// guarantee; nothing checks it at compile time or at run time.
//
// Update may block on I/O or on ctx but must honour ctx.Done(). The state
// argument is the shared store handed to ProcessTick, passed through untouched.
//
// Units are used as map keys, so the dynamic type must be comparable;
// implement Unit on a pointer receiver.
type Unit interface {
	Kind() Kind
	Access() Access
	Update(ctx context.Context, tick Tick, state any) error
}

// Teardowner is implemented by units that release resources when they are
// removed from the scheduler.
type Teardowner interface {
	Teardown() error
}

// UnitFunc adapts a plain function into a Unit.
type UnitFunc struct {
	kind   Kind
	access Access
	fn     func(ctx context.Context, tick Tick, state any) error
}

// NewUnitFunc returns a *UnitFunc. A nil fn makes Update a no-op.
func NewUnitFunc(kind Kind, access Access, fn func(ctx context.Context, tick Tick, state any) error) *UnitFunc {
	return &UnitFunc{kind: kind, access: access, fn: fn}
}

// Kind implements Unit.
func (u *UnitFunc) Kind() Kind { return u.kind }

// Access implements Unit.
func (u *UnitFunc) Access() Access { return u.access }

// Update implements Unit.
func (u *UnitFunc) Update(ctx context.Context, tick Tick, state any) error {
	if u.fn == nil {
		return nil
	}
	return u.fn(ctx, tick, state)
}

// validKind reports whether k is usable as a unit identifier.
func validKind(k Kind) bool {
	return !utils.IsEmptyString(string(k))
}

// contract is the normalized, set-based view of a unit's Access captured at
// rebuild time.
type contract struct {
	unit      Unit
	kind      Kind
	reads     map[Tag]struct{}
	writes    map[Tag]struct{}
	before    map[Kind]struct{}
	after     map[Kind]struct{}
	alongside map[Kind]struct{}
}

func newContract(u Unit) *contract {
	a := u.Access()
	return &contract{
		unit:      u,
		kind:      u.Kind(),
		reads:     toSet(a.Reads),
		writes:    toSet(a.Writes),
		before:    toSet(a.Before),
		after:     toSet(a.After),
		alongside: toSet(a.Alongside),
	}
}

func toSet[E comparable](items []E) map[E]struct{} {
	set := make(map[E]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func has[E comparable](set map[E]struct{}, v E) bool {
	_, ok := set[v]
	return ok
}

// intersect returns the sorted tags present in both sets.
func intersect(a, b map[Tag]struct{}) []Tag {
	if len(b) < len(a) {
		a, b = b, a
	}
	var out []Tag
	for t := range a {
		if _, ok := b[t]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
