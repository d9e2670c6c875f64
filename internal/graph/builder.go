package graph

import (
	"fmt"

	"github.com/dbsmedya/relsynth/internal/schema"
	"github.com/elliotchance/orderedmap/v2"
)

// Builder assembles a RelationshipGraph table by table.
type Builder struct {
	tables    []string
	known     map[string]bool
	pks       *orderedmap.OrderedMap[string, string]
	composite []string
	groups    *orderedmap.OrderedMap[KeyRef, []KeyRef]
	err       error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		known:  make(map[string]bool),
		pks:    orderedmap.NewOrderedMap[string, string](),
		groups: orderedmap.NewOrderedMap[KeyRef, []KeyRef](),
	}
}

// AddTable registers a table with its primary key columns. A composite key is
// noted but not recorded.
func (b *Builder) AddTable(name string, pk ...string) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("table name is empty")
		return b
	}
	if b.known[name] {
		b.err = fmt.Errorf("duplicate table %q", name)
		return b
	}
	b.known[name] = true
	b.tables = append(b.tables, name)

	switch len(pk) {
	case 0:
	case 1:
		b.pks.Set(name, pk[0])
	default:
		b.composite = append(b.composite, name)
	}
	return b
}

// AddReference records that ref points at owner. Groups are created in the
// order their owners are first seen.
func (b *Builder) AddReference(owner, ref KeyRef) *Builder {
	if b.err != nil {
		return b
	}
	if !b.known[owner.Table] {
		b.err = fmt.Errorf("reference %s -> %s: unknown table %q", ref, owner, owner.Table)
		return b
	}
	if !b.known[ref.Table] {
		b.err = fmt.Errorf("reference %s -> %s: unknown table %q", ref, owner, ref.Table)
		return b
	}
	if owner == ref {
		b.err = fmt.Errorf("column %s references itself", ref)
		return b
	}

	refs, _ := b.groups.Get(owner)
	for _, r := range refs {
		if r == ref {
			return b
		}
	}
	b.groups.Set(owner, append(refs, ref))
	return b
}

// Build returns the graph, or the first error recorded while adding to it.
// Cyclic dependencies are allowed here; LoadOrder reports them.
func (b *Builder) Build() (*RelationshipGraph, error) {
	if b.err != nil {
		return nil, b.err
	}

	g := &RelationshipGraph{
		tables:    append([]string(nil), b.tables...),
		pks:       orderedmap.NewOrderedMap[string, string](),
		composite: append([]string(nil), b.composite...),
		children:  make(map[string][]string),
	}

	for el := b.pks.Front(); el != nil; el = el.Next() {
		g.pks.Set(el.Key, el.Value)
	}

	for el := b.groups.Front(); el != nil; el = el.Next() {
		g.groups = append(g.groups, RelationshipGroup{
			Owner:       el.Key,
			Referencing: append([]KeyRef(nil), el.Value...),
		})
		for _, r := range el.Value {
			g.addChild(el.Key.Table, r.Table)
		}
	}
	return g, nil
}

func (g *RelationshipGraph) addChild(parent, child string) {
	if parent == child {
		return
	}
	for _, c := range g.children[parent] {
		if c == child {
			return
		}
	}
	g.children[parent] = append(g.children[parent], child)
}

// FromSchema builds the relationship graph of a reflected schema. Tables are
// visited in reflection order and their foreign keys in column order, which
// fixes the order of the resulting groups.
func FromSchema(s *schema.Schema) (*RelationshipGraph, error) {
	if s == nil {
		return nil, fmt.Errorf("schema is nil")
	}

	b := NewBuilder()
	for _, t := range s.Tables {
		b.AddTable(t.Name, t.PrimaryKey()...)
	}

	for _, t := range s.Tables {
		for _, col := range t.Columns {
			for _, fk := range s.ForeignKeys {
				if fk.Table != t.Name || fk.Column != col.Name {
					continue
				}
				b.AddReference(
					KeyRef{Table: fk.RefTable, Column: fk.RefColumn},
					KeyRef{Table: fk.Table, Column: fk.Column},
				)
			}
		}
	}

	return b.Build()
}
