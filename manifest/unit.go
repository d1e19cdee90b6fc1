package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	sched "github.com/seoyhaein/sched-go"
)

// ErrSimulatedFailure is returned by a StubUnit on the ticks its declaration
// asks it to fail.
var ErrSimulatedFailure = errors.New("simulated unit failure")

// StubUnit is a sched.Unit built from a Declaration. Its Update sleeps for the
// declared cost and fails every FailEvery ticks.
type StubUnit struct {
	decl   Declaration
	access sched.Access
	calls  atomic.Uint64
	torn   atomic.Bool
}

// NewStubUnit returns a StubUnit for decl.
func NewStubUnit(decl Declaration) *StubUnit {
	return &StubUnit{decl: decl, access: decl.Access()}
}

// Kind implements sched.Unit.
func (u *StubUnit) Kind() sched.Kind { return sched.Kind(u.decl.Kind) }

// Access implements sched.Unit.
func (u *StubUnit) Access() sched.Access { return u.access }

// Update implements sched.Unit.
func (u *StubUnit) Update(ctx context.Context, tick sched.Tick, _ any) error {
	u.calls.Add(1)
	if u.decl.Cost > 0 {
		timer := time.NewTimer(u.decl.Cost)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if u.decl.FailEvery > 0 && tick.Seq%u.decl.FailEvery == 0 {
		return fmt.Errorf("%s at tick %d: %w", u.decl.Kind, tick.Seq, ErrSimulatedFailure)
	}
	return nil
}

// Teardown implements sched.Teardowner.
func (u *StubUnit) Teardown() error {
	u.torn.Store(true)
	return nil
}

// Calls returns how many times Update ran.
func (u *StubUnit) Calls() uint64 { return u.calls.Load() }

// TornDown reports whether Teardown ran.
func (u *StubUnit) TornDown() bool { return u.torn.Load() }

// Stubs builds one StubUnit per declaration, in document order.
func (d Document) Stubs() []*StubUnit {
	out := make([]*StubUnit, len(d.Units))
	for i, decl := range d.Units {
		out[i] = NewStubUnit(decl)
	}
	return out
}

// Register adds every unit of the document to s in document order and stops
// at the first rejected unit. The units registered so far stay registered.
func (d Document) Register(s *sched.Scheduler) ([]*StubUnit, error) {
	units := d.Stubs()
	for i, u := range units {
		if err := s.Add(u); err != nil {
			return units[:i], fmt.Errorf("manifest: register %s: %w", u.Kind(), err)
		}
	}
	sched.Log.WithField("units", len(units)).Debug("manifest registered")
	return units, nil
}
