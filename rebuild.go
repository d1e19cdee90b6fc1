package sched_go

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/seoyhaein/sched-go/debugonly"
	"github.com/sirupsen/logrus"
)

// plan is the output of one full rebuild.
type plan struct {
	graph  *Graph[Unit]
	layers [][]Unit
	serial []Unit
}

func unitLabel(u Unit) string {
	return string(u.Kind())
}

// buildPlan derives a fresh graph and layered plan from units, given in
// registration order. It never touches scheduler state.
//
// For every ordered pair (a, b) of distinct units:
//   - an explicit Before/After declaration on either side decides the order
//     and inference is skipped for the pair;
//   - a writes what b reads: b runs after a;
//   - a reads what b writes: a runs after b;
//   - a and b write the same tag: allowed only with an Alongside exemption,
//     otherwise the conflict is resolved by policy.
func buildPlan(units []Unit, policy ConflictPolicy) (*plan, error) {
	graph := NewGraph[Unit](WithLabeler(unitLabel))
	contracts := make([]*contract, len(units))

	for i, u := range units {
		c := newContract(u)
		if has(c.before, c.kind) || has(c.after, c.kind) {
			return nil, fmt.Errorf("%s orders itself against its own kind: %w", c.kind, ErrSelfDependency)
		}
		if err := graph.InsertNode(u); err != nil {
			return nil, err
		}
		contracts[i] = c

		Log.WithFields(logrus.Fields{
			"unit":   c.kind,
			"reads":  formatTags(c.reads),
			"writes": formatTags(c.writes),
		}).Debug("inserted node")
	}

	for i, a := range contracts {
		for j, b := range contracts {
			if i == j {
				continue
			}
			if err := orderPair(graph, a, b, i < j, policy); err != nil {
				return nil, err
			}
		}
	}

	layers, err := graph.ParallelSort()
	if err != nil {
		return nil, err
	}
	serial, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	Log.WithField("layers", len(layers)).Debug("final execution layers: " + describeLayers(layers))
	return &plan{graph: graph, layers: layers, serial: serial}, nil
}

// orderPair adds the edges implied by the ordered pair (a, b). aFirst is true
// when a was registered before b.
//
//nolint:gocognit,gocyclo // the decision table is easier to audit in one place
func orderPair(graph *Graph[Unit], a, b *contract, aFirst bool, policy ConflictPolicy) error {
	fields := logrus.Fields{"unit": a.kind, "other": b.kind}

	runsBefore := has(a.before, b.kind) || has(b.after, a.kind)
	runsAfter := has(a.after, b.kind) || has(b.before, a.kind)
	if runsBefore || runsAfter {
		if runsBefore {
			Log.WithFields(fields).Debugf("explicit ordering: %s runs BEFORE %s", a.kind, b.kind)
			if err := depend(graph, b, a); err != nil {
				return err
			}
		}
		if runsAfter {
			Log.WithFields(fields).Debugf("explicit ordering: %s runs AFTER %s", a.kind, b.kind)
			if err := depend(graph, a, b); err != nil {
				return err
			}
		}
		return nil
	}

	if tags := intersect(a.writes, b.reads); len(tags) > 0 {
		Log.WithFields(fields).WithField("tags", tags).
			Debugf("ordering decision: %s runs BEFORE %s because %s reads what %s writes", a.kind, b.kind, b.kind, a.kind)
		if err := depend(graph, b, a); err != nil {
			return err
		}
	}

	if tags := intersect(a.reads, b.writes); len(tags) > 0 {
		Log.WithFields(fields).WithField("tags", tags).
			Debugf("ordering decision: %s runs BEFORE %s because %s reads what %s writes", b.kind, a.kind, a.kind, b.kind)
		if err := depend(graph, a, b); err != nil {
			return err
		}
	}

	tags := intersect(a.writes, b.writes)
	if len(tags) == 0 {
		return nil
	}
	if has(a.alongside, b.kind) || has(b.alongside, a.kind) {
		Log.WithFields(fields).WithField("tags", tags).
			Debugf("write-write overlap between %s and %s accepted by alongside", a.kind, b.kind)
		return nil
	}

	if policy == ConflictOrderByRegistration {
		first, second := a, b
		if !aFirst {
			first, second = b, a
		}
		if graph.reaches(second.unit, first.unit) || graph.reaches(first.unit, second.unit) {
			return nil
		}
		Log.WithFields(fields).WithField("tags", tags).
			Warnf("unresolved write-write conflict between %s and %s; assuming %s runs BEFORE %s", a.kind, b.kind, first.kind, second.kind)
		return depend(graph, second, first)
	}

	debugonly.BreakHere()
	return &ConflictError{A: a.kind, B: b.kind, Tags: tags}
}

// depend records that node runs after dependency and logs any cycle trace.
func depend(graph *Graph[Unit], node, dependency *contract) error {
	err := graph.SetDependency(node.unit, dependency.unit)
	if err == nil {
		return nil
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		Log.WithField("unit", node.kind).Debugf("rejected dependency on %s:\n%s", dependency.kind, ce.Trace)
	}
	return fmt.Errorf("%s after %s: %w", node.kind, dependency.kind, err)
}

func formatTags(set map[Tag]struct{}) string {
	names := make([]string, 0, len(set))
	for t := range set {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}

func describeLayers(layers [][]Unit) string {
	parts := make([]string, len(layers))
	for i, layer := range layers {
		kinds := make([]string, len(layer))
		for j, u := range layer {
			kinds[j] = string(u.Kind())
		}
		parts[i] = "{" + strings.Join(kinds, ", ") + "}"
	}
	return strings.Join(parts, " | ")
}
