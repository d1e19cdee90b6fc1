package sched_go

import (
	"context"
	"fmt"
	"io"
	"testing"
)

// ── Graph benchmarks ──────────────────────────────────────────────────────────
// Work-unit graphs are small; these keep an eye on how the O(V·E) sorts and
// the per-edge cycle search scale past that.

func benchmarkParallelSort(b *testing.B, numNodes int, edgeProb float64) {
	Log.SetOutput(io.Discard)
	g := generateGraph(numNodes, edgeProb)
	// Warm-up
	_, _ = g.ParallelSort()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		layers, err := g.ParallelSort()
		if err != nil || len(layers) == 0 {
			b.Fatalf("ParallelSort failed: %v", err)
		}
	}
}

func BenchmarkParallelSort_Small(b *testing.B)  { benchmarkParallelSort(b, 10, 0.3) }
func BenchmarkParallelSort_Medium(b *testing.B) { benchmarkParallelSort(b, 100, 0.1) }
func BenchmarkParallelSort_Large(b *testing.B)  { benchmarkParallelSort(b, 500, 0.02) }

func BenchmarkSetDependency_Medium(b *testing.B) {
	Log.SetOutput(io.Discard)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g := generateGraph(100, 0.1)
		if g.Len() != 100 {
			b.Fatal("generateGraph failed")
		}
	}
}

// ── Scheduler benchmarks ──────────────────────────────────────────────────────

// chainUnits returns n units where unit i reads what unit i-1 writes and every
// third unit also reads a shared tag, so the plan has both depth and width.
func chainUnits(n int) []Unit {
	units := make([]Unit, n)
	for i := range n {
		a := Access{Writes: []Tag{Tag(fmt.Sprintf("t%d", i))}}
		if i > 0 {
			a.Reads = append(a.Reads, Tag(fmt.Sprintf("t%d", i-1)))
		}
		if i%3 == 0 {
			a.Reads = append(a.Reads, "Shared")
		}
		units[i] = NewUnitFunc(Kind(fmt.Sprintf("unit%d", i)), a, nil)
	}
	return units
}

func BenchmarkBuildPlan(b *testing.B) {
	Log.SetOutput(io.Discard)
	units := chainUnits(50)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := buildPlan(units, ConflictFail); err != nil {
			b.Fatalf("buildPlan failed: %v", err)
		}
	}
}

func BenchmarkProcessTick(b *testing.B) {
	Log.SetOutput(io.Discard)
	s := NewScheduler()
	for i := range 32 {
		u := NewUnitFunc(Kind(fmt.Sprintf("unit%d", i)), Access{
			Reads:  []Tag{Tag(fmt.Sprintf("in%d", i%4))},
			Writes: []Tag{Tag(fmt.Sprintf("out%d", i))},
		}, nil)
		if err := s.Add(u); err != nil {
			b.Fatalf("Add failed: %v", err)
		}
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.ProcessTick(ctx, Tick{Seq: uint64(i + 1)}, nil); err != nil { //nolint:gosec // i is non-negative
			b.Fatalf("ProcessTick failed: %v", err)
		}
	}
	b.StopTimer()
	_ = s.Close()
}
