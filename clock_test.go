package sched_go

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestClock_RunUntilContextDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var seqs []uint64
	s := NewScheduler()
	mustAdd(t, s, NewUnitFunc("counter", Access{}, func(_ context.Context, tick Tick, _ any) error {
		mu.Lock()
		seqs = append(seqs, tick.Seq)
		mu.Unlock()
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClock(s, 5*time.Millisecond)
	if err := c.Run(ctx, nil); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if c.Running() {
		t.Error("Clock still running after Run returned")
	}
	if c.Ticks() == 0 {
		t.Fatal("Expected at least one tick")
	}
	if s.Ticks() != c.Ticks() {
		t.Errorf("Scheduler processed %d ticks, clock issued %d", s.Ticks(), c.Ticks())
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) { //nolint:gosec // i is non-negative
			t.Fatalf("Expected consecutive sequence numbers from 1, got %v", seqs)
		}
	}
}

func TestClock_DeltaAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	const step = 16 * time.Millisecond
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0

	s := NewScheduler()
	c := NewClock(s, 0)
	c.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * step)
	}

	var deltas []time.Duration
	mustAdd(t, s, NewUnitFunc("stopper", Access{}, func(_ context.Context, tick Tick, _ any) error {
		deltas = append(deltas, tick.Delta)
		if tick.Seq == 3 {
			return c.Stop()
		}
		return nil
	}))

	if err := c.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if len(deltas) != 3 {
		t.Fatalf("Expected Stop to end Run after tick 3, got %d ticks", len(deltas))
	}
	for i, d := range deltas {
		if d != step {
			t.Errorf("tick %d: expected delta %v, got %v", i+1, step, d)
		}
	}
}

func TestClock_AlreadyRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	c := NewClock(s, 5*time.Millisecond)

	if err := c.Stop(); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning before Run, got %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), nil)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !c.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Clock never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Run(context.Background(), nil); !errors.Is(err, ErrClockAlreadyRunning) {
		t.Errorf("Expected ErrClockAlreadyRunning, got %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after Stop", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning after Run returned, got %v", err)
	}
}

func TestClock_TickFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	s := NewScheduler()
	mustAdd(t, s, NewUnitFunc("flaky", Access{}, func(_ context.Context, tick Tick, _ any) error {
		if tick.Seq == 3 {
			return boom
		}
		return nil
	}))

	c := NewClock(s, 0)
	err := c.Run(context.Background(), nil)
	var ue *UnitError
	if !errors.As(err, &ue) || !errors.Is(err, boom) {
		t.Fatalf("Expected the failing tick's UnitError, got %v", err)
	}
	if ue.Tick != 3 {
		t.Errorf("Expected failure on tick 3, got %d", ue.Tick)
	}
	if s.Ticks() != 2 || c.Ticks() != 3 {
		t.Errorf("Expected 2 completed of 3 issued ticks, got %d of %d", s.Ticks(), c.Ticks())
	}
}

func TestClock_ContextEndsMidTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	mustAdd(t, s, NewUnitFunc("slow", Access{}, func(ctx context.Context, _ Tick, _ any) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClock(s, 0)
	if err := c.Run(ctx, nil); err != nil {
		t.Fatalf("A tick cut short by ctx must end Run cleanly, got %v", err)
	}
	if c.Ticks() != 1 || s.Ticks() != 0 {
		t.Errorf("Expected 1 issued and 0 completed ticks, got %d and %d", c.Ticks(), s.Ticks())
	}
}

func TestClock_FailureDuringCancellationPropagates(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	s := NewScheduler()
	mustAdd(t, s, NewUnitFunc("broken", Access{}, func(ctx context.Context, _ Tick, _ any) error {
		<-ctx.Done()
		return boom
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	c := NewClock(s, 0)
	if err := c.Run(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("Expected the unit's own error, got %v", err)
	}
}
