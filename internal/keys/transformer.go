package keys

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
)

// Transformer relabels key columns of transformed tables. Each relationship
// group shares one encoder fitted on the original values of all its columns,
// so a foreign key still matches its parent after relabelling.
type Transformer struct {
	g    *graph.RelationshipGraph
	kept []graph.KeyRef
}

// NewTransformer creates a Transformer for the relationships in g.
func NewTransformer(g *graph.RelationshipGraph) *Transformer {
	return &Transformer{g: g}
}

// Transform replaces the key columns of every table in transformed with the
// encoded original values. Tables absent from transformed are skipped. A group
// with any table absent is not relabelled: its present columns get their
// original values back so they still match the rows the absent tables had.
func (x *Transformer) Transform(transformed, originals *dataset.Dataset) error {
	x.kept = nil
	touched := make(map[string]bool)
	owners := make(map[graph.KeyRef]bool)

	for _, grp := range x.g.Groups() {
		owners[grp.Owner] = true
		cols := append([]graph.KeyRef{grp.Owner}, grp.Referencing...)
		if err := x.encode(transformed, originals, cols, touched); err != nil {
			return err
		}
	}

	for _, table := range x.g.KeyedTables() {
		pk, _ := x.g.PrimaryKey(table)
		ref := graph.KeyRef{Table: table, Column: pk}
		if owners[ref] {
			continue
		}
		if err := x.encode(transformed, originals, []graph.KeyRef{ref}, touched); err != nil {
			return err
		}
	}

	restoreColumnOrder(transformed, originals, touched)
	return nil
}

// KeptOriginal lists the key columns the last Transform left with their
// original values because a table of their group was missing.
func (x *Transformer) KeptOriginal() []graph.KeyRef {
	out := make([]graph.KeyRef, len(x.kept))
	copy(out, x.kept)
	return out
}

// encode fits one encoder over the original values of cols and applies it.
func (x *Transformer) encode(transformed, originals *dataset.Dataset, cols []graph.KeyRef, touched map[string]bool) error {
	values := make([][]any, len(cols))
	var union []any
	for i, ref := range cols {
		orig, ok := originals.Get(ref.Table)
		if !ok {
			return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: "table is missing from the original data"}
		}
		v, err := orig.Column(ref.Column)
		if err != nil {
			return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: "column is missing from the original data"}
		}
		values[i] = v
		union = append(union, v...)
	}

	complete := true
	for _, ref := range cols {
		if _, ok := transformed.Get(ref.Table); !ok {
			complete = false
		}
	}
	enc := FitLabelEncoder(union)

	for i, ref := range cols {
		t, ok := transformed.Get(ref.Table)
		if !ok {
			continue
		}
		if t.Len() != len(values[i]) {
			return &ConsistencyError{
				Table:  ref.Table,
				Column: ref.Column,
				Reason: fmt.Sprintf("transformed table has %d rows, original has %d", t.Len(), len(values[i])),
			}
		}

		if !complete {
			orig := make([]any, len(values[i]))
			copy(orig, values[i])
			if err := t.SetColumn(ref.Column, orig); err != nil {
				return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: err.Error()}
			}
			x.kept = append(x.kept, ref)
			touched[ref.Table] = true
			continue
		}

		codes, err := enc.Transform(values[i])
		if err != nil {
			var encErr *EncodingError
			if errors.As(err, &encErr) {
				encErr.Table, encErr.Column = ref.Table, ref.Column
			}
			return err
		}
		if err := t.SetColumn(ref.Column, codes); err != nil {
			return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: err.Error()}
		}
		touched[ref.Table] = true
	}
	return nil
}
