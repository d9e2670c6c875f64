// Package dataset holds in-memory tabular data keyed by table name.
package dataset

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// Table is an ordered set of rows with named columns. A nil cell is SQL NULL.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// AppendRow adds a row. The row length must match the column count.
func (t *Table) AppendRow(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %q: row has %d values, expected %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns a copy of the values of a column.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("table %q has no column %q", t.Name, name)
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// SetColumn overwrites a column in place, appending it when absent.
// values must have exactly one entry per row.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("table %q column %q: got %d values for %d rows", t.Name, name, len(values), len(t.Rows))
	}

	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}

	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Without returns a copy of the table with the named columns removed.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var keep []int
	var cols []string
	for i, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}

	out := &Table{Name: t.Name, Columns: cols, Rows: make([][]any, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make([]any, len(keep))
		for j, idx := range keep {
			nr[j] = row[idx]
		}
		out.Rows[r] = nr
	}
	return out
}

// Reorder arranges columns so that those listed in order come first, in that order.
// Columns not listed keep their relative order after them; unknown names are ignored.
func (t *Table) Reorder(order []string) {
	var perm []int
	used := make(map[int]bool, len(t.Columns))
	for _, name := range order {
		if idx := t.ColumnIndex(name); idx >= 0 && !used[idx] {
			perm = append(perm, idx)
			used[idx] = true
		}
	}
	for i := range t.Columns {
		if !used[i] {
			perm = append(perm, i)
		}
	}

	cols := make([]string, len(perm))
	for j, idx := range perm {
		cols[j] = t.Columns[idx]
	}
	for r, row := range t.Rows {
		nr := make([]any, len(perm))
		for j, idx := range perm {
			nr[j] = row[idx]
		}
		t.Rows[r] = nr
	}
	t.Columns = cols
}

// Clone returns a deep copy of the table structure. Cell values are shared.
func (t *Table) Clone() *Table {
	out := NewTable(t.Name, t.Columns)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		nr := make([]any, len(row))
		copy(nr, row)
		out.Rows[i] = nr
	}
	return out
}

// Dataset maps table names to tables, preserving insertion order.
type Dataset struct {
	tables *orderedmap.OrderedMap[string, *Table]
}

// New creates an empty Dataset.
func New() *Dataset {
	return &Dataset{tables: orderedmap.NewOrderedMap[string, *Table]()}
}

// Set stores a table under its name, replacing any previous entry in place.
func (d *Dataset) Set(t *Table) {
	d.tables.Set(t.Name, t)
}

// Get returns the table with the given name.
func (d *Dataset) Get(name string) (*Table, bool) {
	return d.tables.Get(name)
}

// Delete removes a table.
func (d *Dataset) Delete(name string) {
	d.tables.Delete(name)
}

// Len returns the number of tables.
func (d *Dataset) Len() int {
	return d.tables.Len()
}

// Names returns table names in insertion order.
func (d *Dataset) Names() []string {
	return d.tables.Keys()
}

// Each calls fn for every table in insertion order, stopping at the first error.
func (d *Dataset) Each(fn func(*Table) error) error {
	for el := d.tables.Front(); el != nil; el = el.Next() {
		if err := fn(el.Value); err != nil {
			return err
		}
	}
	return nil
}

// Clone deep-copies every table.
func (d *Dataset) Clone() *Dataset {
	out := New()
	for el := d.tables.Front(); el != nil; el = el.Next() {
		out.Set(el.Value.Clone())
	}
	return out
}
