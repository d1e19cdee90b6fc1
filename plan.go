package sched_go

import "sort"

// UnitView is a read-only description of one scheduled unit.
type UnitView struct {
	Kind      Kind
	Layer     int
	Reads     []Tag
	Writes    []Tag
	Before    []Kind
	After     []Kind
	Alongside []Kind
	DependsOn []Kind
}

// PlanView is a detached copy of a scheduler's plan for diagnostics and
// visualizers. Mutating it has no effect on the scheduler.
type PlanView struct {
	SchedulerID string
	Generation  uint64
	Layers      [][]UnitView
}

// Units returns the number of units across all layers.
func (p PlanView) Units() int {
	n := 0
	for _, layer := range p.Layers {
		n += len(layer)
	}
	return n
}

// Snapshot describes the current plan together with each unit's declared
// access and resolved dependencies.
func (s *Scheduler) Snapshot() PlanView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := PlanView{
		SchedulerID: s.ID,
		Generation:  s.generation,
		Layers:      make([][]UnitView, len(s.layers)),
	}
	for i, layer := range s.layers {
		views := make([]UnitView, len(layer))
		for j, u := range layer {
			views[j] = s.viewOf(u, i)
		}
		view.Layers[i] = views
	}
	return view
}

func (s *Scheduler) viewOf(u Unit, layer int) UnitView {
	a := u.Access()
	deps := s.graph.DependsOn(u)
	depKinds := make([]Kind, len(deps))
	for i, d := range deps {
		depKinds[i] = d.Kind()
	}
	return UnitView{
		Kind:      u.Kind(),
		Layer:     layer,
		Reads:     sortedCopy(a.Reads),
		Writes:    sortedCopy(a.Writes),
		Before:    sortedCopy(a.Before),
		After:     sortedCopy(a.After),
		Alongside: sortedCopy(a.Alongside),
		DependsOn: sortedCopy(depKinds),
	}
}

func sortedCopy[E ~string](in []E) []E {
	out := append([]E(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
