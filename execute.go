package sched_go

import (
	"context"
	"fmt"
	"runtime/pprof"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ProcessTick runs every unit once. Layers run in plan order; inside a layer
// every unit's Update runs in its own goroutine and the layer is joined before
// the next one starts.
//
// The first failing Update is returned as a *UnitError. Its siblings see their
// ctx cancelled but the layer is still joined before ProcessTick returns, and
// later layers do not start. Nothing is retried or recovered.
//
// ProcessTick holds the scheduler's read lock for the whole tick, so Add and
// Remove wait for it to finish.
func (s *Scheduler) ProcessTick(ctx context.Context, tick Tick, state any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("process tick %d: %w", tick.Seq, ErrSchedulerClosed)
	}

	var err error
	if s.Config.SerialExecution {
		err = s.runSerial(ctx, tick, state)
	} else {
		for i, layer := range s.layers {
			if err = s.runLayer(ctx, i, layer, tick, state); err != nil {
				break
			}
		}
	}
	if err != nil {
		s.logger().WithError(err).WithField("tick", tick.Seq).Error("tick aborted")
		return err
	}

	s.ticks.Add(1)
	return nil
}

// runLayer fans the layer out over an errgroup and waits for all of it.
func (s *Scheduler) runLayer(ctx context.Context, index int, layer []Unit, tick Tick, state any) error {
	eg, egCtx := errgroup.WithContext(ctx)
	if s.Config.MaxLayerConcurrency > 0 {
		eg.SetLimit(s.Config.MaxLayerConcurrency)
	}

	for _, u := range layer {
		eg.Go(func() error {
			return update(egCtx, u, index, tick, state)
		})
	}
	return eg.Wait()
}

// runSerial runs the units one by one in topological order.
func (s *Scheduler) runSerial(ctx context.Context, tick Tick, state any) error {
	for _, u := range s.serial {
		if err := update(ctx, u, s.layerOf[u], tick, state); err != nil {
			return err
		}
	}
	return nil
}

// update calls u.Update under pprof labels so that per-unit CPU shows up in
// profiles.
func update(ctx context.Context, u Unit, layer int, tick Tick, state any) error {
	var err error
	lbl := pprof.Labels(
		"phase", "update",
		"unit", string(u.Kind()),
		"layer", strconv.Itoa(layer),
	)
	pprof.Do(ctx, lbl, func(ctx context.Context) {
		err = u.Update(ctx, tick, state)
	})
	if err != nil {
		return &UnitError{Kind: u.Kind(), Tick: tick.Seq, Layer: layer, Err: err}
	}
	return nil
}
