package sched_go

import (
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestIsValidTransition(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		from, to UnitState
		want     bool
	}{
		{UnitStateUnregistered, UnitStateRegistered, true},
		{UnitStateUnregistered, UnitStateScheduled, false},
		{UnitStateRegistered, UnitStateScheduled, true},
		{UnitStateRegistered, UnitStateUnregistered, true},
		{UnitStateScheduled, UnitStateUnregistered, true},
		{UnitStateScheduled, UnitStateRegistered, false},
		{UnitStateScheduled, UnitStateScheduled, false},
		{UnitState(42), UnitStateRegistered, false},
	}
	for _, tt := range tests {
		if got := isValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("isValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if UnitState(42).String() != "Unknown" {
		t.Errorf("Unexpected name for an unknown state: %s", UnitState(42))
	}
}

func TestEntryTransitionState(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEntry(unit("physics", Access{}))
	if e.State() != UnitStateUnregistered || e.kind != "physics" {
		t.Fatalf("Unexpected new entry: %s %s", e.kind, e.State())
	}
	if e.TransitionState(UnitStateRegistered, UnitStateScheduled) {
		t.Error("Transition from the wrong state must fail")
	}
	if !e.TransitionState(UnitStateUnregistered, UnitStateRegistered) {
		t.Fatal("Unregistered -> Registered failed")
	}
	if !e.TransitionState(UnitStateRegistered, UnitStateScheduled) {
		t.Fatal("Registered -> Scheduled failed")
	}
	if e.TransitionState(UnitStateScheduled, UnitStateRegistered) {
		t.Error("Scheduled must never move back to Registered")
	}
	if e.State() != UnitStateScheduled {
		t.Errorf("Expected Scheduled, got %s", e.State())
	}
}

func TestEntryTransitionState_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEntry(unit("physics", Access{}))
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.TransitionState(UnitStateUnregistered, UnitStateRegistered) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("Expected exactly one winning transition, got %d", wins.Load())
	}
}
