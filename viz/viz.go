// Package viz renders scheduler plans and scheduling errors for terminals.
package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	sched "github.com/seoyhaein/sched-go"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	layerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#999999")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Bold(true)
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	readStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	writeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	depStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	traceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// RenderPlan draws every layer of p as a bordered box, stacked top to bottom
// in execution order.
func RenderPlan(p sched.PlanView) string {
	title := titleStyle.Render(fmt.Sprintf("plan generation %d: %d units in %d layers",
		p.Generation, p.Units(), len(p.Layers)))
	if len(p.Layers) == 0 {
		return title + "\n" + depStyle.Render("  (empty)")
	}

	blocks := []string{title}
	for i, layer := range p.Layers {
		blocks = append(blocks, RenderLayer(i, layer))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderLayer draws a single layer.
func RenderLayer(index int, layer []sched.UnitView) string {
	lines := []string{headerStyle.Render(fmt.Sprintf("layer %d", index))}
	for _, u := range layer {
		lines = append(lines, renderUnit(u))
	}
	return layerStyle.Render(strings.Join(lines, "\n"))
}

func renderUnit(u sched.UnitView) string {
	parts := []string{kindStyle.Render(string(u.Kind))}
	if len(u.Reads) > 0 {
		parts = append(parts, readStyle.Render("R "+joinTags(u.Reads)))
	}
	if len(u.Writes) > 0 {
		parts = append(parts, writeStyle.Render("W "+joinTags(u.Writes)))
	}
	if len(u.DependsOn) > 0 {
		parts = append(parts, depStyle.Render("after "+joinKinds(u.DependsOn)))
	}
	if len(u.Alongside) > 0 {
		parts = append(parts, depStyle.Render("alongside "+joinKinds(u.Alongside)))
	}
	return strings.Join(parts, "  ")
}

// RenderError formats a scheduling error. Cycle errors include their trace
// and conflict errors list the overlapping tags.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	out := errorStyle.Render("error: ") + err.Error()

	var ce *sched.CycleError
	if errors.As(err, &ce) && ce.Trace != "" {
		out += "\n" + traceStyle.Render(indent(ce.Trace, "  "))
	}
	var conflict *sched.ConflictError
	if errors.As(err, &conflict) {
		out += "\n" + depStyle.Render(fmt.Sprintf("  hint: add %q to the alongside, before or after list of %q",
			conflict.A, conflict.B))
	}
	return out
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func joinTags(tags []sched.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

func joinKinds(kinds []sched.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return "{" + strings.Join(names, ", ") + "}"
}
