// Package verifier checks referential integrity of final tables and compares
// written tables with their in-memory source.
package verifier

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/logger"
)

// IssueKind classifies an integrity problem.
type IssueKind string

const (
	IssueMissingTable  IssueKind = "missing_table"
	IssueMissingColumn IssueKind = "missing_column"
	IssueNullKey       IssueKind = "null_key"
	IssueDuplicateKey  IssueKind = "duplicate_key"
	IssueNotDense      IssueKind = "not_dense"
	IssueDanglingRef   IssueKind = "dangling_reference"
	IssueRowCount      IssueKind = "row_count"
	IssueMismatch      IssueKind = "mismatch"
)

// Issue is one integrity problem.
type Issue struct {
	Table  string
	Column string
	Kind   IssueKind
	Detail string
}

func (i Issue) String() string {
	loc := i.Table
	if i.Column != "" {
		loc += "." + i.Column
	}
	return fmt.Sprintf("%s: %s (%s)", loc, i.Detail, i.Kind)
}

// Report collects the outcome of a verification pass.
type Report struct {
	TablesChecked int
	RowsChecked   int64
	Issues        []Issue
}

func (r *Report) add(table, column string, kind IssueKind, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Table: table, Column: column, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// OK reports whether no issue was found.
func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

// Err returns nil when the report is clean, or an error listing every issue.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		lines[i] = "  - " + issue.String()
	}
	return fmt.Errorf("verification failed with %d issue(s):\n%s", len(r.Issues), strings.Join(lines, "\n"))
}

// Options selects optional checks.
type Options struct {
	// DenseKeys requires primary keys of the listed tables to be exactly 0..N-1.
	DenseKeys []string
	// Expected row counts per table. Tables not listed are not checked.
	Expected map[string]int
	// AllowMissingTables skips relationships whose tables are absent from the
	// dataset, as after a transform in which some tables failed.
	AllowMissingTables bool
}

// Verifier checks key integrity of a dataset against a relationship graph.
type Verifier struct {
	g      *graph.RelationshipGraph
	logger *logger.Logger
}

// New creates a Verifier. A nil logger falls back to the default logger.
func New(g *graph.RelationshipGraph, log *logger.Logger) (*Verifier, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{g: g, logger: log}, nil
}

// Check verifies that primary keys are unique and non-NULL and that every
// non-NULL foreign key value exists among the values of the key it references.
func (v *Verifier) Check(ds *dataset.Dataset, opts Options) *Report {
	r := &Report{}

	dense := make(map[string]bool, len(opts.DenseKeys))
	for _, t := range opts.DenseKeys {
		dense[t] = true
	}

	for _, name := range ds.Names() {
		t, _ := ds.Get(name)
		r.TablesChecked++
		r.RowsChecked += int64(t.Len())
		if want, ok := opts.Expected[name]; ok && want != t.Len() {
			r.add(name, "", IssueRowCount, "expected %d rows, found %d", want, t.Len())
		}
	}

	for _, table := range v.g.KeyedTables() {
		t, ok := ds.Get(table)
		if !ok {
			continue
		}
		pk, _ := v.g.PrimaryKey(table)
		v.checkPrimaryKey(r, t, pk, dense[table])
	}

	for _, grp := range v.g.Groups() {
		v.checkGroup(r, ds, grp, opts.AllowMissingTables)
	}

	if r.OK() {
		v.logger.Infof("Verification passed: %d tables, %d rows", r.TablesChecked, r.RowsChecked)
	} else {
		v.logger.Errorf("Verification found %d issue(s) across %d tables", len(r.Issues), r.TablesChecked)
	}
	return r
}

func (v *Verifier) checkPrimaryKey(r *Report, t *dataset.Table, pk string, dense bool) {
	values, err := t.Column(pk)
	if err != nil {
		r.add(t.Name, pk, IssueMissingColumn, "primary key column is missing")
		return
	}

	seen := make(map[string]bool, len(values))
	for i, val := range values {
		if val == nil {
			r.add(t.Name, pk, IssueNullKey, "row %d has a NULL primary key", i)
			continue
		}
		k := dataset.Format(val)
		if seen[k] {
			r.add(t.Name, pk, IssueDuplicateKey, "value %s appears more than once", k)
		}
		seen[k] = true
	}

	if !dense {
		return
	}
	for i := range values {
		if !seen[fmt.Sprint(i)] {
			r.add(t.Name, pk, IssueNotDense, "keys are not 0..%d, %d is missing", len(values)-1, i)
			return
		}
	}
}

func (v *Verifier) checkGroup(r *Report, ds *dataset.Dataset, grp graph.RelationshipGroup, allowMissing bool) {
	owner, ok := ds.Get(grp.Owner.Table)
	if !ok {
		if allowMissing {
			return
		}
		r.add(grp.Owner.Table, "", IssueMissingTable, "referenced table is missing")
		return
	}
	ownerValues, err := owner.Column(grp.Owner.Column)
	if err != nil {
		r.add(grp.Owner.Table, grp.Owner.Column, IssueMissingColumn, "referenced column is missing")
		return
	}

	keys := make(map[string]bool, len(ownerValues))
	for _, val := range ownerValues {
		if val != nil {
			keys[dataset.Format(val)] = true
		}
	}

	for _, ref := range grp.Referencing {
		t, ok := ds.Get(ref.Table)
		if !ok {
			if allowMissing {
				continue
			}
			r.add(ref.Table, "", IssueMissingTable, "referencing table is missing")
			continue
		}
		values, err := t.Column(ref.Column)
		if err != nil {
			r.add(ref.Table, ref.Column, IssueMissingColumn, "foreign key column is missing")
			continue
		}

		dangling := 0
		var example string
		for _, val := range values {
			if val == nil {
				continue
			}
			if k := dataset.Format(val); !keys[k] {
				if dangling == 0 {
					example = k
				}
				dangling++
			}
		}
		if dangling > 0 {
			r.add(ref.Table, ref.Column, IssueDanglingRef,
				"%d value(s) not found in %s, e.g. %s", dangling, grp.Owner, example)
		}
	}
}
