// Package graph models the primary/foreign key relationships of a database.
package graph

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// KeyRef names one column of one table.
type KeyRef struct {
	Table  string
	Column string
}

func (k KeyRef) String() string {
	return k.Table + "." + k.Column
}

// RelationshipGroup is a key column together with every foreign key column that points at it.
type RelationshipGroup struct {
	Owner       KeyRef
	Referencing []KeyRef
}

// Tables returns the owner table followed by each distinct referencing table.
func (g RelationshipGroup) Tables() []string {
	seen := map[string]bool{g.Owner.Table: true}
	out := []string{g.Owner.Table}
	for _, r := range g.Referencing {
		if !seen[r.Table] {
			seen[r.Table] = true
			out = append(out, r.Table)
		}
	}
	return out
}

// RelationshipGraph is the key structure of a database. It is immutable once
// built; accessors hand out copies.
type RelationshipGraph struct {
	tables    []string
	pks       *orderedmap.OrderedMap[string, string]
	groups    []RelationshipGroup
	composite []string

	// children maps an owner table to the tables that reference it.
	children map[string][]string
}

// Tables returns every table in reflection order.
func (g *RelationshipGraph) Tables() []string {
	out := make([]string, len(g.tables))
	copy(out, g.tables)
	return out
}

// HasTable reports whether the table is part of the graph.
func (g *RelationshipGraph) HasTable(name string) bool {
	for _, t := range g.tables {
		if t == name {
			return true
		}
	}
	return false
}

// PrimaryKey returns the single primary key column of a table.
func (g *RelationshipGraph) PrimaryKey(table string) (string, bool) {
	return g.pks.Get(table)
}

// PrimaryKeys returns table -> primary key column for tables with a single-column key.
func (g *RelationshipGraph) PrimaryKeys() map[string]string {
	out := make(map[string]string, g.pks.Len())
	for el := g.pks.Front(); el != nil; el = el.Next() {
		out[el.Key] = el.Value
	}
	return out
}

// KeyedTables returns tables with a recorded primary key, in reflection order.
func (g *RelationshipGraph) KeyedTables() []string {
	return g.pks.Keys()
}

// CompositeKeyTables returns tables whose multi-column primary key was not recorded.
func (g *RelationshipGraph) CompositeKeyTables() []string {
	out := make([]string, len(g.composite))
	copy(out, g.composite)
	return out
}

// Groups returns the relationship groups in discovery order.
func (g *RelationshipGraph) Groups() []RelationshipGroup {
	out := make([]RelationshipGroup, len(g.groups))
	for i, grp := range g.groups {
		refs := make([]KeyRef, len(grp.Referencing))
		copy(refs, grp.Referencing)
		out[i] = RelationshipGroup{Owner: grp.Owner, Referencing: refs}
	}
	return out
}

// GroupOwnedBy returns the group whose owner is the given key.
func (g *RelationshipGraph) GroupOwnedBy(owner KeyRef) (RelationshipGroup, bool) {
	for _, grp := range g.Groups() {
		if grp.Owner == owner {
			return grp, true
		}
	}
	return RelationshipGroup{}, false
}

// Unreferenced returns tables whose primary key is not the owner of any group.
func (g *RelationshipGraph) Unreferenced() []string {
	var out []string
	for el := g.pks.Front(); el != nil; el = el.Next() {
		if _, owned := g.GroupOwnedBy(KeyRef{Table: el.Key, Column: el.Value}); !owned {
			out = append(out, el.Key)
		}
	}
	return out
}

// KeyColumns returns the columns of a table that take part in any key relationship,
// plus its primary key. These are the columns rebuilt after synthesis.
func (g *RelationshipGraph) KeyColumns(table string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}

	if pk, ok := g.pks.Get(table); ok {
		add(pk)
	}
	for _, grp := range g.groups {
		if grp.Owner.Table == table {
			add(grp.Owner.Column)
		}
		for _, r := range grp.Referencing {
			if r.Table == table {
				add(r.Column)
			}
		}
	}
	return out
}

// Parents returns the distinct tables referenced by a table, self-references excluded.
func (g *RelationshipGraph) Parents(table string) []string {
	var out []string
	for _, parent := range g.tables {
		for _, child := range g.children[parent] {
			if child == table {
				out = append(out, parent)
				break
			}
		}
	}
	return out
}

// Children returns the distinct tables referencing a table, self-references excluded.
func (g *RelationshipGraph) Children(table string) []string {
	out := make([]string, len(g.children[table]))
	copy(out, g.children[table])
	return out
}

// SelfReferencing returns tables holding a foreign key to their own primary key.
func (g *RelationshipGraph) SelfReferencing() []string {
	var out []string
	seen := make(map[string]bool)
	for _, grp := range g.groups {
		for _, r := range grp.Referencing {
			if r.Table == grp.Owner.Table && !seen[r.Table] {
				seen[r.Table] = true
				out = append(out, r.Table)
			}
		}
	}
	return out
}

// String summarises the graph for logs.
func (g *RelationshipGraph) String() string {
	return fmt.Sprintf("RelationshipGraph{tables=%d, keyed=%d, groups=%d, unreferenced=%d}",
		len(g.tables), g.pks.Len(), len(g.groups), len(g.Unreferenced()))
}
