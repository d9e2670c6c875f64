package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/orchestrator"
)

// PlanInput is what the plan report shows.
type PlanInput struct {
	Source   string
	Graph    *graph.RelationshipGraph
	Original *dataset.Dataset // nil when row counts were not read
	Counts   orchestrator.RecordCounts
	Excluded map[string]bool
	Ratio    float64
}

// Plan prints the relationship tree, keys, groups, load order and target row counts.
func (p *Printer) Plan(in PlanInput) {
	g := in.Graph

	p.Header("Relation Tree")
	summary := []string{
		"[ Summary ]",
		strings.Repeat("-", 11),
		fmt.Sprintf("Source:        %s", in.Source),
		fmt.Sprintf("Tables:        %d", len(g.Tables())),
		fmt.Sprintf("Keyed tables:  %d", len(g.KeyedTables())),
		fmt.Sprintf("Groups:        %d", len(g.Groups())),
		fmt.Sprintf("Unreferenced:  %d", len(g.Unreferenced())),
		fmt.Sprintf("Ratio:         %g", in.Ratio),
	}
	p.SideBySide(Tree(g), summary, 4)

	p.Section("Primary Keys")
	pks := g.PrimaryKeys()
	rows := make([][]string, 0, len(pks))
	for _, t := range g.KeyedTables() {
		rows = append(rows, []string{t, pks[t]})
	}
	p.Table([]string{"TABLE", "KEY"}, rows)
	if composite := g.CompositeKeyTables(); len(composite) > 0 {
		p.Line("Composite keys, not rebuilt: %s", strings.Join(composite, ", "))
	}

	p.Section("Relationship Groups")
	for i, grp := range g.Groups() {
		refs := make([]string, len(grp.Referencing))
		for j, r := range grp.Referencing {
			refs[j] = r.String()
		}
		p.Line("[%d] %s <- %s", i+1, grp.Owner, strings.Join(refs, ", "))
	}
	if len(g.Groups()) == 0 {
		p.Line("(none)")
	}
	if unref := g.Unreferenced(); len(unref) > 0 {
		p.Line("Unreferenced: %s", strings.Join(unref, ", "))
	}

	p.Section("Load Order (parent tables first)")
	order, err := g.LoadOrder()
	var cycle *graph.CycleError
	switch {
	case errors.As(err, &cycle):
		p.Line("%s %s", p.Status("failed"), cycle.Error())
	case err != nil:
		p.Line("%s %v", p.Status("failed"), err)
	default:
		for i, t := range order {
			if parents := g.Parents(t); len(parents) > 0 {
				p.Line("[%d] %s -> %s", i+1, t, strings.Join(parents, ", "))
			} else {
				p.Line("[%d] %s", i+1, t)
			}
		}
	}

	if in.Original == nil {
		return
	}
	p.Section("Record Counts")
	rows = rows[:0]
	for _, name := range in.Original.Names() {
		t, _ := in.Original.Get(name)
		mode := "synthesize"
		switch {
		case in.Excluded[name]:
			mode = p.Status("excluded")
		case t.Len() == 0:
			mode = p.Status("empty")
		}
		rows = append(rows, []string{name, fmt.Sprint(t.Len()), fmt.Sprint(in.Counts[name]), mode})
	}
	p.Table([]string{"TABLE", "SOURCE", "TARGET", "MODE"}, rows)
}

// Tree renders the tables as a forest: tables nobody references are roots and
// each table is listed under the tables it references. A table already on the
// current path is marked and not expanded again.
func Tree(g *graph.RelationshipGraph) []string {
	var lines []string
	printed := make(map[string]bool)

	var walk func(table, prefix string, last bool, path map[string]bool, depth int)
	walk = func(table, prefix string, last bool, path map[string]bool, depth int) {
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		if depth == 0 {
			branch, next = "", ""
		}
		if path[table] {
			lines = append(lines, prefix+branch+table+" (cycle)")
			return
		}
		lines = append(lines, prefix+branch+table)
		printed[table] = true

		path[table] = true
		children := g.Children(table)
		for i, child := range children {
			walk(child, prefix+next, i == len(children)-1, path, depth+1)
		}
		delete(path, table)
	}

	for _, t := range g.Tables() {
		if len(g.Parents(t)) == 0 {
			walk(t, "", true, map[string]bool{}, 0)
		}
	}
	// Tables that only sit on cycles have no root above them.
	for _, t := range g.Tables() {
		if !printed[t] {
			walk(t, "", true, map[string]bool{}, 0)
		}
	}
	return lines
}
