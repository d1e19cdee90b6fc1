package sched_go

import (
	"fmt"
	"strings"
)

// ToMermaid renders the current plan as a Mermaid flowchart.
func (s *Scheduler) ToMermaid() string {
	return s.Snapshot().ToMermaid()
}

// ToMermaid renders the plan as a Mermaid flowchart: one subgraph per layer
// and an arrow from every dependency to the unit that waits for it.
func (p PlanView) ToMermaid() string {
	ids := mermaidIDs(p)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, layer := range p.Layers {
		fmt.Fprintf(&sb, "    subgraph layer_%d[\"layer %d\"]\n", i, i)
		for _, u := range layer {
			fmt.Fprintf(&sb, "        %s[\"%s\"]\n", ids[u.Kind], mermaidNodeLabel(u))
		}
		sb.WriteString("    end\n")
	}

	for _, layer := range p.Layers {
		for _, u := range layer {
			for _, dep := range u.DependsOn {
				fmt.Fprintf(&sb, "    %s --> %s\n", ids[dep], ids[u.Kind])
			}
		}
	}
	return sb.String()
}

// mermaidIDs assigns every kind in the plan a distinct node identifier. Kinds
// that sanitize to the same identifier get a numeric suffix in plan order.
func mermaidIDs(p PlanView) map[Kind]string {
	ids := make(map[Kind]string, p.Units())
	used := make(map[string]struct{}, p.Units())
	for _, layer := range p.Layers {
		for _, u := range layer {
			base := mermaidSafeID(string(u.Kind))
			id := base
			for n := 2; ; n++ {
				if _, taken := used[id]; !taken {
					break
				}
				id = fmt.Sprintf("%s_%d", base, n)
			}
			used[id] = struct{}{}
			ids[u.Kind] = id
		}
	}
	return ids
}

// mermaidSafeID maps id onto [A-Za-z0-9_]. Identifiers starting with a digit
// get a "u_" prefix.
func mermaidSafeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "u_" + out
	}
	return out
}

func mermaidNodeLabel(u UnitView) string {
	label := strings.ReplaceAll(string(u.Kind), `"`, "'")
	if len(u.Reads) > 0 {
		label += "<br/>R: " + joinTags(u.Reads)
	}
	if len(u.Writes) > 0 {
		label += "<br/>W: " + joinTags(u.Writes)
	}
	return label
}

func joinTags(tags []Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = strings.ReplaceAll(string(t), `"`, "'")
	}
	return strings.Join(names, ", ")
}
