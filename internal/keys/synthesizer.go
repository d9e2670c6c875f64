package keys

import (
	"math/rand"
	"time"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
)

// SynthesizerOptions tunes key synthesis.
type SynthesizerOptions struct {
	// Rand drives the foreign key shuffle. Nil seeds a source from the clock.
	Rand *rand.Rand
	// Preserve lists tables that were not synthesized. Their keys keep their
	// original values; their foreign keys are only resampled when the
	// referenced table was synthesized.
	Preserve []string
}

// Synthesizer assigns fresh primary keys to synthetic tables and draws foreign
// keys so that each parent has, on average, as many children as in the source.
type Synthesizer struct {
	g        *graph.RelationshipGraph
	rng      *rand.Rand
	preserve map[string]bool
}

// NewSynthesizer creates a Synthesizer for the relationships in g.
func NewSynthesizer(g *graph.RelationshipGraph, opts SynthesizerOptions) *Synthesizer {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	preserve := make(map[string]bool, len(opts.Preserve))
	for _, t := range opts.Preserve {
		preserve[t] = true
	}
	return &Synthesizer{g: g, rng: rng, preserve: preserve}
}

// Synthesize rewrites the key columns of ds in place. originals is only used
// to restore each table's column order and may be nil.
//
// Every synthesized table with a primary key gets the keys 0..N-1. For each
// relationship group the owner's key values are spread over each referencing
// column: every value is repeated N_T/|P| times, the remainder is filled by
// cycling through the owner values from the start, and the result is shuffled.
func (s *Synthesizer) Synthesize(ds, originals *dataset.Dataset) error {
	touched := make(map[string]bool)

	if err := s.assignPrimaryKeys(ds, touched); err != nil {
		return err
	}

	for _, grp := range s.g.Groups() {
		if err := s.assignForeignKeys(ds, grp, touched); err != nil {
			return err
		}
	}

	restoreColumnOrder(ds, originals, touched)
	return nil
}

// assignPrimaryKeys numbers every key owned by a synthesized table.
func (s *Synthesizer) assignPrimaryKeys(ds *dataset.Dataset, touched map[string]bool) error {
	owned := make(map[graph.KeyRef]bool)
	for _, table := range s.g.KeyedTables() {
		pk, _ := s.g.PrimaryKey(table)
		owned[graph.KeyRef{Table: table, Column: pk}] = true
	}
	for _, grp := range s.g.Groups() {
		if _, ok := ds.Get(grp.Owner.Table); !ok {
			return &ConsistencyError{Table: grp.Owner.Table, Column: grp.Owner.Column, Reason: "owning table is missing from the dataset"}
		}
		owned[grp.Owner] = true
	}

	for _, table := range s.g.Tables() {
		t, ok := ds.Get(table)
		if !ok || s.preserve[table] {
			continue
		}
		for _, col := range s.g.KeyColumns(table) {
			if !owned[graph.KeyRef{Table: table, Column: col}] {
				continue
			}
			if err := t.SetColumn(col, sequence(t.Len())); err != nil {
				return &ConsistencyError{Table: table, Column: col, Reason: err.Error()}
			}
			touched[table] = true
		}
	}
	return nil
}

func (s *Synthesizer) assignForeignKeys(ds *dataset.Dataset, grp graph.RelationshipGroup, touched map[string]bool) error {
	owner, _ := ds.Get(grp.Owner.Table)
	parentValues, err := owner.Column(grp.Owner.Column)
	if err != nil {
		return &ConsistencyError{Table: grp.Owner.Table, Column: grp.Owner.Column, Reason: "owning key column is missing"}
	}
	parents := make([]any, 0, len(parentValues))
	for _, v := range parentValues {
		if v != nil {
			parents = append(parents, v)
		}
	}
	ownerSynthesized := !s.preserve[grp.Owner.Table]

	for _, ref := range grp.Referencing {
		t, ok := ds.Get(ref.Table)
		if !ok {
			return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: "referencing table is missing from the dataset"}
		}
		if s.preserve[ref.Table] && !ownerSynthesized {
			continue
		}

		n := t.Len()
		if n > 0 && len(parents) == 0 {
			return &ConsistencyError{
				Table:  ref.Table,
				Column: ref.Column,
				Reason: "referenced table " + grp.Owner.Table + " has no rows to point at",
			}
		}

		values := Distribute(parents, n, s.rng)
		if err := t.SetColumn(ref.Column, values); err != nil {
			return &ConsistencyError{Table: ref.Table, Column: ref.Column, Reason: err.Error()}
		}
		touched[ref.Table] = true
	}
	return nil
}

// Distribute draws n foreign key values from parents. Each parent appears
// n/len(parents) times; the remainder repeats parents from the first one on.
// The result is shuffled with rng.
func Distribute(parents []any, n int, rng *rand.Rand) []any {
	out := make([]any, 0, n)
	if n == 0 || len(parents) == 0 {
		return out
	}

	avg := n / len(parents)
	for _, p := range parents {
		for i := 0; i < avg; i++ {
			out = append(out, p)
		}
	}
	for i := 0; len(out) < n; i++ {
		out = append(out, parents[i%len(parents)])
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func sequence(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

// restoreColumnOrder puts key columns that were appended back where the source had them.
func restoreColumnOrder(ds, originals *dataset.Dataset, touched map[string]bool) {
	if originals == nil {
		return
	}
	for table := range touched {
		t, _ := ds.Get(table)
		if orig, ok := originals.Get(table); ok {
			t.Reorder(orig.Columns)
		}
	}
}
