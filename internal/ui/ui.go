// Package ui renders plans for the terminal: one line per operation,
// with per-key diff details, colored when the terminal supports it.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"elabctl/internal/diff"
	"elabctl/internal/plan"
)

// Styles carries the lipgloss styles for the three operation classes.
type Styles struct {
	Create lipgloss.Style
	Update lipgloss.Style
	Delete lipgloss.Style
	Faint  lipgloss.Style
}

// DefaultStyles matches the conventional plan colors: green for
// additions, yellow for changes, red for removals. On terminals without
// color support the styles degrade to plain text.
func DefaultStyles() Styles {
	if termenv.EnvColorProfile() == termenv.Ascii {
		return Styles{}
	}
	return Styles{
		Create: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Update: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Delete: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Faint:  lipgloss.NewStyle().Faint(true),
	}
}

// Renderer writes plan previews.
type Renderer struct {
	styles Styles
}

// NewRenderer builds a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{styles: DefaultStyles()}
}

func (r *Renderer) styleFor(action plan.Action) lipgloss.Style {
	switch action {
	case plan.ActionCreate:
		return r.styles.Create
	case plan.ActionDelete:
		return r.styles.Delete
	default:
		return r.styles.Update
	}
}

// RenderPlan produces the full preview: every operation line, diff
// details for updates, and a closing summary.
func (r *Renderer) RenderPlan(p *plan.Plan) string {
	var b strings.Builder
	for _, op := range p.Operations {
		b.WriteString(r.styleFor(op.Action).Render(op.String()))
		b.WriteByte('\n')
		if op.Action == plan.ActionUpdate && !op.Diff.IsEmpty() {
			r.renderDiff(&b, op.Diff)
		}
	}
	b.WriteByte('\n')
	b.WriteString(r.styles.Faint.Render(r.Summary(p)))
	b.WriteByte('\n')
	return b.String()
}

// Summary is the one-line tally of the plan.
func (r *Renderer) Summary(p *plan.Plan) string {
	creates, updates, deletes := p.Counts()
	return fmt.Sprintf("Plan: %d to add, %d to change, %d to destroy.", creates, updates, deletes)
}

func (r *Renderer) renderDiff(b *strings.Builder, d diff.Diff) {
	r.renderDict(b, "    ", d.Main)
	names := make([]string, 0, len(d.Metadata.ToAdd)+len(d.Metadata.ToChange))
	for name := range d.Metadata.ToAdd {
		names = append(names, name)
	}
	for name := range d.Metadata.ToChange {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := d.Metadata.ToAdd[name]; ok {
			fmt.Fprintf(b, "    %s\n", r.styles.Create.Render(fmt.Sprintf("+ field %q", name)))
			continue
		}
		fmt.Fprintf(b, "    %s\n", r.styles.Update.Render(fmt.Sprintf("~ field %q", name)))
		r.renderDict(b, "        ", d.Metadata.ToChange[name])
	}
	for _, name := range d.Metadata.ToDelete {
		fmt.Fprintf(b, "    %s\n", r.styles.Delete.Render(fmt.Sprintf("- field %q", name)))
	}
}

func (r *Renderer) renderDict(b *strings.Builder, indent string, c diff.DictComparison) {
	keys := make([]string, 0, len(c.ToAdd))
	for key := range c.ToAdd {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		line := fmt.Sprintf("+ %s: %v", key, c.ToAdd[key])
		fmt.Fprintf(b, "%s%s\n", indent, r.styles.Create.Render(line))
	}
	keys = keys[:0]
	for key := range c.ToChange {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		change := c.ToChange[key]
		line := fmt.Sprintf("~ %s: %v -> %v", key, change.Old, change.New)
		fmt.Fprintf(b, "%s%s\n", indent, r.styles.Update.Render(line))
	}
	for _, key := range c.ToDelete {
		line := fmt.Sprintf("- %s", key)
		fmt.Fprintf(b, "%s%s\n", indent, r.styles.Delete.Render(line))
	}
}
