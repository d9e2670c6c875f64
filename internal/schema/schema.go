// Package schema reflects relational metadata from a live database and
// snapshots table contents.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dbsmedya/relsynth/internal/sqlutil"
)

// ErrReflection wraps every failure raised while reading database metadata.
var ErrReflection = errors.New("schema reflection failed")

// Column describes a table column.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// ForeignKey is one referencing column pointing at one referenced column.
// Composite constraints produce one ForeignKey per column pair.
type ForeignKey struct {
	Table      string
	Column     string
	RefTable   string
	RefColumn  string
	Constraint string
}

// Table is a reflected table with columns in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

// PrimaryKey returns the primary key column names in ordinal order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// ColumnNames returns column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema is the full reflected database.
type Schema struct {
	Tables      []Table
	ForeignKeys []ForeignKey
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns table names in reflection order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Extractor reads schema metadata for one SQL dialect.
type Extractor interface {
	Extract(ctx context.Context, db *sql.DB) (*Schema, error)
}

var (
	registryMu sync.RWMutex
	extractors = map[sqlutil.Dialect]Extractor{}
)

// Register makes an Extractor available for a dialect.
func Register(d sqlutil.Dialect, e Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	extractors[d] = e
}

// Dialects lists the registered dialects.
func Dialects() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(extractors))
	for d := range extractors {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}

// ForDialect returns the extractor registered for a dialect.
func ForDialect(d sqlutil.Dialect) (Extractor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := extractors[d]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for %q (available: %v)", d, Dialects())
	}
	return e, nil
}

// Reflect extracts the schema of db. Any failure is wrapped with ErrReflection.
func Reflect(ctx context.Context, db *sql.DB, d sqlutil.Dialect) (*Schema, error) {
	e, err := ForDialect(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReflection, err)
	}
	s, err := e.Extract(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReflection, err)
	}
	return s, nil
}

// assembleTables groups reflected columns by table, keeping the order of tableNames.
func assembleTables(tableNames []string, cols map[string][]Column) []Table {
	tables := make([]Table, 0, len(tableNames))
	for _, name := range tableNames {
		tables = append(tables, Table{Name: name, Columns: cols[name]})
	}
	return tables
}
