package sched_go

import (
	"strings"
	"testing"

	"go.uber.org/goleak"
)

func TestToMermaid(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	mustAdd(t, s,
		unit("physics", Access{Writes: tags("Transform")}),
		unit("render-2d", Access{Reads: tags("Transform")}),
	)

	got := s.ToMermaid()
	want := "graph TD\n" +
		"    subgraph layer_0[\"layer 0\"]\n" +
		"        physics[\"physics<br/>W: Transform\"]\n" +
		"    end\n" +
		"    subgraph layer_1[\"layer 1\"]\n" +
		"        render_2d[\"render-2d<br/>R: Transform\"]\n" +
		"    end\n" +
		"    physics --> render_2d\n"
	if got != want {
		t.Errorf("Unexpected diagram:\n%s\nwant:\n%s", got, want)
	}
}

func TestToMermaid_Empty(t *testing.T) {
	defer goleak.VerifyNone(t)

	if got := NewScheduler().ToMermaid(); got != "graph TD\n" {
		t.Errorf("Expected a bare header, got %q", got)
	}
}

func TestMermaidSafeID(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := map[string]string{
		"physics":      "physics",
		"render.2d":    "render_2d",
		"2d":           "u_2d",
		"":             "u_",
		"ai brain":     "ai_brain",
		"under_score9": "under_score9",
	}
	for in, want := range tests {
		if got := mermaidSafeID(in); got != want {
			t.Errorf("mermaidSafeID(%q) = %q, want %q", in, got, want)
		}
	}
	if strings.ContainsAny(mermaidNodeLabel(UnitView{Kind: `say "hi"`}), `"`) {
		t.Error("Labels must not contain double quotes")
	}
}

func TestToMermaid_DistinctIDs(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	// a-b and a.b share the first layer, a_b reads X in the second
	mustAdd(t, s,
		unit("a-b", Access{Writes: tags("X")}),
		unit("a_b", Access{Reads: tags("X")}),
		unit("a.b", Access{}),
	)

	got := s.ToMermaid()
	for _, want := range []string{
		"        a_b[\"a-b<br/>W: X\"]\n",
		"        a_b_2[\"a.b\"]\n",
		"        a_b_3[\"a_b<br/>R: X\"]\n",
		"    a_b --> a_b_3\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Diagram is missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "-->") != 1 {
		t.Errorf("Expected exactly one edge:\n%s", got)
	}
}
